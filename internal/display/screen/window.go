// Package screen presents caster surfaces in an ebiten window.
package screen

import (
	"github.com/hajimehoshi/ebiten/v2"

	"voxelcaster/internal/device"
	"voxelcaster/internal/display"
)

// Window shares surfaces with the ebiten game loop. Surfaces live in host
// memory and are uploaded to a cached ebiten image on draw.
type Window struct {
	img *ebiten.Image
	// Filter is used when the frame is scaled onto the screen.
	Filter ebiten.Filter
}

func NewWindow() *Window { return &Window{Filter: ebiten.FilterNearest} }

func (w *Window) Name() string { return "ebiten" }

func (w *Window) Properties(platform device.PlatformID) (device.Properties, error) {
	return display.HostMirror(platform, "ebiten"), nil
}

func (w *Window) NewSurface(width, height int) (device.Surface, error) {
	return display.NewCanvas(width, height)
}

// Target returns a draw target for this frame's screen.
func (w *Window) Target(screen *ebiten.Image) *ScreenTarget {
	return &ScreenTarget{win: w, screen: screen}
}

// ScreenTarget draws a surface scaled to fill the screen.
type ScreenTarget struct {
	win    *Window
	screen *ebiten.Image
}

func (t *ScreenTarget) DrawSurface(s device.Surface) error {
	w, h := s.Size()
	img := t.win.image(w, h)
	img.WritePixels(s.Pixels())

	sw, sh := t.screen.Bounds().Dx(), t.screen.Bounds().Dy()
	op := &ebiten.DrawImageOptions{Filter: t.win.Filter}
	op.GeoM.Scale(float64(sw)/float64(w), float64(sh)/float64(h))
	t.screen.DrawImage(img, op)
	return nil
}

// image returns the upload image, reallocating it when the viewport size
// changes.
func (w *Window) image(width, height int) *ebiten.Image {
	if w.img != nil {
		b := w.img.Bounds()
		if b.Dx() == width && b.Dy() == height {
			return w.img
		}
		w.img.Deallocate()
	}
	w.img = ebiten.NewImage(width, height)
	return w.img
}
