package caster

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxelcaster/internal/device"
	"voxelcaster/internal/device/host"
	"voxelcaster/internal/kernels"
)

func TestBaseDirections(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 3}, {4, 2}, {7, 5}} {
		dirs := BaseDirections(size[0], size[1], 60, 80)
		require.Len(t, dirs, size[0]*size[1]*4)
		for i := 0; i < len(dirs); i += 4 {
			n := math32.Sqrt(dirs[i]*dirs[i] + dirs[i+1]*dirs[i+1] + dirs[i+2]*dirs[i+2])
			assert.InDelta(t, 1, n, 1e-5)
			assert.Zero(t, dirs[i+3])
		}
	}

	// The centre ray of an odd viewport points straight up the base axis.
	dirs := BaseDirections(3, 3, 60, 60)
	centre := dirs[4*4 : 4*4+3]
	assert.InDelta(t, 0, centre[0], 1e-3)
	assert.InDelta(t, 0, centre[1], 1e-6)
	assert.InDelta(t, 1, centre[2], 1e-3)

	// Neighbouring columns diverge horizontally, rows vertically.
	assert.Less(t, dirs[3*4+1], dirs[5*4+1])
	assert.NotEqual(t, dirs[1*4], dirs[7*4])
}

func TestViewportResizeReplacesBuffers(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")

	require.NoError(t, c.CreateViewport(4, 3, 60, 80))
	assert.Equal(t, 12, c.Viewport().Directions())
	assert.Equal(t, 3, drv.Allocations())

	require.NoError(t, c.TestEditViewport(5, 7, 45, 45))
	vp := c.Viewport()
	assert.Equal(t, 35, vp.Directions())
	assert.Equal(t, [2]int{5, 7}, [2]int{vp.Width, vp.Height})

	img, ok := c.Buffer(BufImage)
	require.True(t, ok)
	assert.Equal(t, 5*7*4, img.Size)
	assert.Equal(t, BackingSurface, img.Backing)
	matrix, _ := c.Buffer(BufViewportMatrix)
	assert.Equal(t, 35*16, matrix.Size)

	names := 0
	for _, b := range c.Buffers() {
		if b.Name == BufImage {
			names++
		}
	}
	assert.Equal(t, 1, names)
	assert.Equal(t, 3, drv.Allocations(), "old viewport buffers are released")

	res := make([]byte, 8)
	require.NoError(t, c.ReadBuffer(BufViewportResolution, 0, res))
	assert.Equal(t, encodeInts(5, 7), res)
}

func TestViewportRebuildIsAllOrNothing(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, "")
	require.NoError(t, c.CreateViewport(4, 4, 60, 60))

	drv.InjectFault("create_buffer", device.StatusMemObjectAllocationFailure)
	err := c.CreateViewport(8, 8, 60, 60)
	require.Error(t, err)
	assert.Equal(t, 4, c.Viewport().Width)
	img, _ := c.Buffer(BufImage)
	assert.Equal(t, 4*4*4, img.Size)
	assert.Equal(t, 3, drv.Allocations())

	assert.ErrorIs(t, c.CreateViewport(0, 4, 60, 60), ErrInvalid)
}

func TestViewportFillColor(t *testing.T) {
	c, err := New(Options{
		Driver:     host.Default(),
		Interop:    testInterop{},
		Logger:     quietLogger(),
		KernelName: kernels.Raycaster,
		FillColor:  color.RGBA{R: 1, G: 2, B: 3, A: 255},
	})
	require.NoError(t, err)
	require.NoError(t, c.Init())
	defer c.Close()

	require.NoError(t, c.CreateViewport(2, 1, 60, 60))
	assert.Equal(t, []byte{1, 2, 3, 255, 1, 2, 3, 255}, c.Viewport().Surface().Pixels())
}

type flatMap struct{ x, y, z int }

func (m flatMap) Dimensions() (int, int, int) { return m.x, m.y, m.z }

func (m flatMap) Voxels() []byte {
	v := make([]byte, m.x*m.y*m.z)
	// Floor layer.
	for i := 0; i < m.x*m.y; i++ {
		v[i] = 1
	}
	return v
}

type fixedCamera struct {
	pos [3]float32
	dir [2]float32
}

func (c *fixedCamera) Position() [3]float32  { return c.pos }
func (c *fixedCamera) Direction() [2]float32 { return c.dir }

type packedLights []byte

func (p packedLights) LightCount() int    { return len(p) / LightRecordSize }
func (p packedLights) PackLights() []byte { return p }

type tileAtlas struct{ s *canvas }

func (a tileAtlas) Surface() device.Surface { return a.s }
func (a tileAtlas) TileSize() (int, int)    { return 2, 2 }

func raycasterScene(t *testing.T, c *Caster) *fixedCamera {
	t.Helper()
	cam := &fixedCamera{pos: [3]float32{4, 4, 4}, dir: [2]float32{math32.Pi, 0}}
	atlas := &canvas{w: 4, h: 2, pix: make([]byte, 4*2*4)}
	for i := range atlas.pix {
		atlas.pix[i] = 200
	}
	require.NoError(t, c.CreateViewport(8, 6, 60, 80))
	require.NoError(t, c.AssignMap(flatMap{8, 8, 8}))
	require.NoError(t, c.AssignCamera(cam))
	require.NoError(t, c.AssignLights(packedLights(encodeFloats(
		4, 4, 6, 0,
		1, 1, 1, 1,
		1, 0, 0.01, 0,
	))))
	require.NoError(t, c.CreateTextureAtlas(tileAtlas{atlas}))
	require.NoError(t, c.BindLayout(kernels.Raycaster, RaycasterLayout()))
	require.NoError(t, c.Validate())
	return cam
}

func TestRaycasterFrame(t *testing.T) {
	drv := host.Default()
	c := newCaster(t, drv, kernels.Raycaster)
	cam := raycasterScene(t, c)
	require.NoError(t, c.Compute())

	vp := c.Viewport()
	centre := (vp.Width/2 + vp.Width*(vp.Height/2)) * 4
	floor := append([]byte(nil), vp.Surface().Pixels()[centre:centre+4]...)
	assert.Equal(t, byte(255), floor[3])
	assert.NotEqual(t, []byte{0, 0, 0, 0}, floor)

	// Looking up sees the sky instead of the floor.
	cam.dir = [2]float32{0, 0}
	require.NoError(t, c.Compute())
	sky := vp.Surface().Pixels()[centre : centre+4]
	assert.NotEqual(t, floor, sky)
	assert.Greater(t, sky[2], sky[0])
}

func TestRaycasterLayoutMatchesKernelSlots(t *testing.T) {
	layout := RaycasterLayout()
	assert.Len(t, layout, kernels.ArgTileDimensions+1)
	assert.Equal(t, BufImage, layout[kernels.ArgImage])
	assert.Equal(t, BufLights, layout[kernels.ArgLights])
	assert.Equal(t, BufTextureAtlas, layout[kernels.ArgTextureAtlas])
	assert.Equal(t, LightRecordSize, kernels.LightRecordSize)
}

func TestTestEditViewportRevalidates(t *testing.T) {
	c := newCaster(t, host.Default(), kernels.Raycaster)
	raycasterScene(t, c)
	gen := c.Generation()

	require.NoError(t, c.TestEditViewport(5, 3, 45, 60))
	assert.Greater(t, c.Generation(), gen)
	assert.True(t, c.Validated())
	require.NoError(t, c.Compute())
}

func TestDebugQuickRecompileFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passthrough.cl")
	require.NoError(t, os.WriteFile(path, []byte(source(t, kernels.Passthrough)), 0o644))

	drv := host.Default()
	c, err := New(Options{Driver: drv, Interop: testInterop{}, Logger: quietLogger(), KernelName: kernels.Passthrough, KernelSource: path, KernelIsPath: true})
	require.NoError(t, err)
	require.NoError(t, c.Init())
	defer c.Close()
	assert.Equal(t, path, c.KernelPath())

	require.NoError(t, c.CreateViewport(2, 2, 60, 60))
	require.NoError(t, c.CreateBuffer("input", 16, make([]byte, 16), ReadOnly))
	require.NoError(t, c.BindLayout(kernels.Passthrough, []string{"input", BufImage}))
	require.NoError(t, c.Validate())

	require.NoError(t, c.DebugQuickRecompile())
	assert.True(t, c.Validated())
	require.NoError(t, c.Compute())

	// A broken edit keeps the running kernel.
	require.NoError(t, os.WriteFile(path, []byte("__kernel void passthrough(\n"), 0o644))
	err = c.DebugQuickRecompile()
	assert.Equal(t, KindBuild, KindOf(err))
	assert.NotEmpty(t, BuildLog(err))
	assert.True(t, c.Validated())
	require.NoError(t, c.Compute())
}
