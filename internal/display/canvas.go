// Package display holds the in-memory surfaces the caster renders into and
// the headless backend. The window backend lives in display/screen.
package display

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"voxelcaster/internal/device"
)

// Canvas is an RGBA surface with tightly packed rows.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas allocates a cleared canvas.
func NewCanvas(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("display: canvas size %dx%d", width, height)
	}
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}, nil
}

func (c *Canvas) Size() (int, int)   { return c.img.Rect.Dx(), c.img.Rect.Dy() }
func (c *Canvas) Pixels() []byte     { return c.img.Pix }
func (c *Canvas) Image() *image.RGBA { return c.img }

// surfaceImage views a surface as an image without copying.
func surfaceImage(s device.Surface) *image.RGBA {
	if c, ok := s.(*Canvas); ok {
		return c.img
	}
	w, h := s.Size()
	return &image.RGBA{Pix: s.Pixels(), Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
}

// HostMirror is the context property set for backends that expose their
// pixels to the compute device through host memory.
func HostMirror(platform device.PlatformID, backend string) device.Properties {
	return device.Properties{Platform: platform, Sharing: device.SharingHostMirror, Backend: backend}
}

// Headless renders into memory only.
type Headless struct{}

func (Headless) Name() string { return "headless" }

func (Headless) Properties(platform device.PlatformID) (device.Properties, error) {
	return HostMirror(platform, "headless"), nil
}

func (Headless) NewSurface(width, height int) (device.Surface, error) {
	return NewCanvas(width, height)
}

// ImageTarget copies drawn surfaces into Image. With Width and Height set
// the surface is scaled to that size, otherwise it is copied as is.
type ImageTarget struct {
	Width, Height int
	// Scaler defaults to nearest neighbour.
	Scaler draw.Scaler
	Image  *image.RGBA
}

func (t *ImageTarget) DrawSurface(s device.Surface) error {
	src := surfaceImage(s)
	w, h := s.Size()
	if t.Width > 0 && t.Height > 0 {
		w, h = t.Width, t.Height
	}
	if t.Image == nil || t.Image.Rect.Dx() != w || t.Image.Rect.Dy() != h {
		t.Image = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	if src.Rect.Eq(t.Image.Rect) {
		copy(t.Image.Pix, src.Pix)
		return nil
	}
	scaler := t.Scaler
	if scaler == nil {
		scaler = draw.NearestNeighbor
	}
	scaler.Scale(t.Image, t.Image.Rect, src, src.Rect, draw.Src, nil)
	return nil
}
