package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// Draw presents the viewport surface and the optional overlay.
func (g *Game) Draw(screen *ebiten.Image) {
	if err := g.sess.caster.Draw(g.window.Target(screen)); err != nil {
		g.reportFrameError(err)
		return
	}

	if debugFlag {
		vp := g.sess.caster.Viewport()
		pos := g.sess.camera.Position()
		dir := g.sess.camera.Direction()
		dev := g.sess.caster.Device()
		debugMsg := fmt.Sprintf("FPS: %.1f  TPS: %.1f\nDevice: %s (%s)\nCompute: %.2f ms  frames %d  failed %d\nViewport: %dx%d  fov %.0f/%.0f ([ ] - =)\nPos: %.1f %.1f %.1f  pitch %.2f yaw %.2f",
			ebiten.ActualFPS(), ebiten.ActualTPS(),
			dev.Name, dev.Type,
			g.lastCompute.Seconds()*1000, g.sess.caster.Frames(), g.failedFrames,
			vp.Width, vp.Height, g.vfov, g.hfov,
			pos[0], pos[1], pos[2], dir[0], dir[1])
		ebitenutil.DebugPrint(screen, debugMsg)
	}
}
