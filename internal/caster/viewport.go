package caster

import (
	"image/color"

	"github.com/chewxy/math32"

	"voxelcaster/internal/device"
)

// pitchCorrection turns the +X base ray of the direction table up to +Z so
// that a camera pitch of pi/2 looks at the horizon.
const pitchCorrection = -1.57

// Viewport is the output surface and the per-pixel base ray directions the
// kernel rotates by the camera each frame.
type Viewport struct {
	Width, Height int
	VFov, HFov    float32

	surface    device.Surface
	directions []float32
}

// Directions returns the number of cached base ray directions.
func (v *Viewport) Directions() int { return len(v.directions) / 4 }

// Direction returns the base ray of pixel (x, y).
func (v *Viewport) Direction(x, y int) [3]float32 {
	i := (x + v.Width*y) * 4
	return [3]float32{v.directions[i], v.directions[i+1], v.directions[i+2]}
}

// Surface returns the surface the viewport renders into.
func (v *Viewport) Surface() device.Surface { return v.surface }

// BaseDirections returns width*height normalised rays, four floats each,
// spread vfov degrees vertically and hfov degrees horizontally around the
// centre pixel.
func BaseDirections(width, height int, vfov, hfov float32) []float32 {
	yInc := vfov / float32(height) * math32.Pi / 180
	xInc := hfov / float32(width) * math32.Pi / 180
	out := make([]float32, 0, width*height*4)
	for row := 0; row < height; row++ {
		y := float32(row - height/2)
		for col := 0; col < width; col++ {
			x := float32(col - width/2)
			r := rotatePitch([3]float32{1, 0, 0}, yInc*y)
			r = rotateYaw(r, xInc*x)
			r = rotatePitch(r, pitchCorrection)
			n := math32.Sqrt(r[0]*r[0] + r[1]*r[1] + r[2]*r[2])
			out = append(out, r[0]/n, r[1]/n, r[2]/n, 0)
		}
	}
	return out
}

func rotatePitch(r [3]float32, a float32) [3]float32 {
	s, c := math32.Sincos(a)
	return [3]float32{r[2]*s + r[0]*c, r[1], r[2]*c - r[0]*s}
}

func rotateYaw(r [3]float32, a float32) [3]float32 {
	s, c := math32.Sincos(a)
	return [3]float32{r[0]*c - r[1]*s, r[0]*s + r[1]*c, r[2]}
}

// CreateViewport allocates the output surface and the direction table and
// registers the image, viewport_matrix and viewport_resolution buffers.
// Calling it again rebuilds all three: either every buffer is replaced or
// none is.
func (c *Caster) CreateViewport(width, height int, vfov, hfov float32) error {
	const op = "create_viewport"
	if err := c.ready(op); err != nil {
		return err
	}
	if width <= 0 || height <= 0 || vfov <= 0 || hfov <= 0 {
		return validationError(ErrInvalid, op, BufImage).withDetail("%dx%d at %gx%g degrees", width, height, vfov, hfov)
	}
	surface, err := c.interop.NewSurface(width, height)
	if err != nil {
		return deviceError(op, BufImage, err).withDetail("backend %s", c.interop.Name())
	}
	fill(surface, c.opts.FillColor)
	dirs := BaseDirections(width, height, vfov, hfov)

	image, err := c.allocSurface(op, BufImage, surface, WriteOnly)
	if err != nil {
		return err
	}
	matrix, err := c.allocHost(op, BufViewportMatrix, len(dirs)*4, encodeFloats(dirs...), ReadOnly)
	if err != nil {
		c.releaseBuffers([]*Buffer{image})
		return err
	}
	res, err := c.allocHost(op, BufViewportResolution, 8, encodeInts(width, height), ReadOnly)
	if err != nil {
		c.releaseBuffers([]*Buffer{image, matrix})
		return err
	}
	c.swap(image, matrix, res)
	if c.viewport != nil {
		// A rebuilt viewport always needs a fresh Validate.
		c.invalidate()
	}
	c.viewport = &Viewport{Width: width, Height: height, VFov: vfov, HFov: hfov, surface: surface, directions: dirs}
	c.log.Info("viewport created", "width", width, "height", height, "vfov", vfov, "hfov", hfov)
	return nil
}

// TestEditViewport rebuilds the viewport at a new size or field of view,
// restores the active kernel's layout and validates again.
func (c *Caster) TestEditViewport(width, height int, vfov, hfov float32) error {
	if err := c.CreateViewport(width, height, vfov, hfov); err != nil {
		return err
	}
	if layout, ok := c.layouts[c.active]; ok {
		if err := c.BindLayout(c.active, layout); err != nil {
			return err
		}
	}
	return c.Validate()
}

// Viewport returns the current viewport, or nil before CreateViewport.
func (c *Caster) Viewport() *Viewport { return c.viewport }

func fill(s device.Surface, col color.RGBA) {
	pix := s.Pixels()
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = col.R, col.G, col.B, col.A
	}
}
