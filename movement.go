package main

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"voxelcaster/internal/scene"
)

// enableAutoOrbit circles the camera around the map centre for a limited
// duration.
func (g *Game) enableAutoOrbit(duration time.Duration) {
	g.autoOrbit = true
	g.orbitDeadline = time.Now().Add(duration)
	if g.orbitRand == nil {
		g.orbitRand = rand.New(rand.NewSource(time.Now().UnixNano() + 3))
	}
	g.orbitHeight = g.sess.camera.Position()[2]
}

// applyMovement selects either manual or automatic movement. A profile
// recorded during the orbit ends with it.
func (g *Game) applyMovement() {
	if g.autoOrbit {
		if time.Now().After(g.orbitDeadline) {
			g.autoOrbit = false
			if g.profile != nil {
				g.profile.Stop()
			}
			return
		}
		g.orbitStep()
		return
	}
	g.manualMovement()
}

// manualMovement applies WASD, Q/E and arrow key input to the camera.
func (g *Game) manualMovement() {
	cam := g.sess.camera
	keys := []struct {
		key     ebiten.Key
		heading scene.Heading
	}{
		{ebiten.KeyW, scene.Forward},
		{ebiten.KeyS, scene.Rearward},
		{ebiten.KeyA, scene.Left},
		{ebiten.KeyD, scene.Right},
		{ebiten.KeyE, scene.Up},
		{ebiten.KeyQ, scene.Down},
	}
	for _, k := range keys {
		if ebiten.IsKeyPressed(k.key) {
			cam.AddRelativeImpulse(k.heading, moveImpulse)
		}
	}

	var dPitch, dYaw float32
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) {
		dPitch -= lookSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) {
		dPitch += lookSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) {
		dYaw -= lookSpeed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) {
		dYaw += lookSpeed
	}
	if dPitch != 0 || dYaw != 0 {
		cam.Slew(dPitch, dYaw)
	}
}

// orbitStep moves the camera one step along its orbit with a small random
// height drift, always facing the map centre.
func (g *Game) orbitStep() {
	w := g.sess.world
	cx, cy := float32(w.X)/2, float32(w.Y)/2
	radius := min(cx, cy) * 0.6
	g.orbitAngle += orbitSpeed
	g.orbitHeight += (g.orbitRand.Float32() - 0.5) * 0.1
	g.orbitHeight = min(max(g.orbitHeight, 2), float32(w.Z)-2)

	s, c := math32.Sincos(g.orbitAngle)
	cam := g.sess.camera
	cam.SetPosition([3]float32{cx + c*radius, cy + s*radius, g.orbitHeight})
	cam.LookAt([3]float32{cx, cy, 1})
}

// handleDebugControls processes recompile, field of view and resolution
// hotkeys.
func (g *Game) handleDebugControls() {
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		g.quickRecompile()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		g.adjustFov(-fovStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.adjustFov(fovStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.adjustResolution(-resolutionStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.adjustResolution(resolutionStep)
	}
}

// adjustFov widens or narrows both fields of view within bounds.
func (g *Game) adjustFov(delta float32) {
	g.vfov = min(max(g.vfov+delta, minFov), maxFov)
	g.hfov = min(max(g.hfov+delta, minFov), maxFov)
	vp := g.sess.caster.Viewport()
	g.editViewport(vp.Width, vp.Height)
}

// adjustResolution changes the viewport width within bounds, keeping the
// aspect ratio of the window.
func (g *Game) adjustResolution(delta int) {
	vp := g.sess.caster.Viewport()
	width := min(max(vp.Width+delta, minWidth), maxWidth)
	height := max(1, width*g.screenH/g.screenW)
	g.editViewport(width, height)
}

func (g *Game) editViewport(width, height int) {
	if err := g.sess.caster.TestEditViewport(width, height, g.vfov, g.hfov); err != nil {
		g.log.Error("viewport rebuild failed", "err", err)
		return
	}
	g.log.Info("viewport rebuilt", "width", width, "height", height, "vfov", g.vfov, "hfov", g.hfov)
}
