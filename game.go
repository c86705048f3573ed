package main

import (
	"log/slog"
	"math/rand"
	"time"

	"voxelcaster/internal/caster"
	"voxelcaster/internal/display/screen"
)

// Game drives one session from the ebiten loop: input and recompiles in
// Update, the compute dispatch, then presenting the surface in Draw.
type Game struct {
	sess   *session
	window *screen.Window
	log    *slog.Logger

	// recompile is nil unless the kernel file is watched.
	recompile <-chan struct{}

	vfov, hfov    float32
	screenW       int
	screenH       int
	lastErr       error
	lastErrLog    time.Time
	lastCompute   time.Duration
	failedFrames  int
	autoOrbit     bool
	orbitDeadline time.Time
	profile       *cpuProfile
	orbitRand     *rand.Rand
	orbitAngle    float32
	orbitHeight   float32
}

func newGame(sess *session, window *screen.Window, log *slog.Logger) *Game {
	vp := sess.caster.Viewport()
	return &Game{
		sess:    sess,
		window:  window,
		log:     log,
		vfov:    vp.VFov,
		hfov:    vp.HFov,
		screenW: vp.Width * windowScale,
		screenH: vp.Height * windowScale,
	}
}

// Update advances the camera and renders the next frame.
func (g *Game) Update() error {
	g.handleRecompile()
	g.handleDebugControls()
	g.applyMovement()
	g.sess.camera.Update(1.0 / defaultTPS)

	start := time.Now()
	err := g.sess.caster.Compute()
	g.lastCompute = time.Since(start)
	if err != nil {
		g.reportFrameError(err)
	}
	return nil
}

// reportFrameError logs failed frames at most once per errorLogInterval
// unless the failure changes. A failed frame keeps the previous image.
func (g *Game) reportFrameError(err error) {
	g.failedFrames++
	now := time.Now()
	same := g.lastErr != nil && g.lastErr.Error() == err.Error()
	if same && now.Sub(g.lastErrLog) < errorLogInterval {
		return
	}
	g.log.Error("frame failed", "err", err, "kind", caster.KindOf(err), "failed_frames", g.failedFrames)
	g.lastErr, g.lastErrLog = err, now
}

// handleRecompile rebuilds the kernel when the watched file changed.
func (g *Game) handleRecompile() {
	if g.recompile == nil {
		return
	}
	select {
	case <-g.recompile:
		g.quickRecompile()
	default:
	}
}

func (g *Game) quickRecompile() {
	if err := g.sess.caster.DebugQuickRecompile(); err != nil {
		g.log.Error("kernel recompile failed", "err", err)
		return
	}
	g.log.Info("kernel recompiled", "kernel", g.sess.caster.KernelPath())
}

// Layout reports the logical screen size used by Ebiten.
func (g *Game) Layout(_, _ int) (int, int) { return g.screenW, g.screenH }
