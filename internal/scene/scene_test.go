package scene

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func TestGenerateMapDeterministic(t *testing.T) {
	opts := DefaultGenerateOptions(32, 24)
	a, err := GenerateMap(32, 24, 8, 7, opts)
	require.NoError(t, err)
	b, err := GenerateMap(32, 24, 8, 7, opts)
	require.NoError(t, err)
	assert.Equal(t, a.Voxels(), b.Voxels())

	x, y, z := a.Dimensions()
	assert.Equal(t, [3]int{32, 24, 8}, [3]int{x, y, z})
	assert.Len(t, a.Voxels(), 32*24*8)
}

func TestGenerateMapLayout(t *testing.T) {
	opts := DefaultGenerateOptions(32, 32)
	m, err := GenerateMap(32, 32, 10, 3, opts)
	require.NoError(t, err)

	for j := 0; j < 32; j++ {
		for i := 0; i < 32; i++ {
			require.Equal(t, byte(1), m.At(i, j, 0), "floor at %d,%d", i, j)
		}
	}
	for k := 1; k <= opts.WallHeight; k++ {
		assert.NotZero(t, m.At(0, 5, k))
		assert.NotZero(t, m.At(31, 5, k))
		assert.NotZero(t, m.At(5, 0, k))
	}
	assert.Zero(t, m.At(0, 5, opts.WallHeight+1))

	// The clear zone stays open above the floor.
	for k := 1; k < 10; k++ {
		assert.Zero(t, m.At(opts.ClearX, opts.ClearY, k))
	}

	for _, v := range m.Voxels() {
		assert.LessOrEqual(t, int(v), max(opts.Tiles, 2))
	}
}

func TestGenerateMapRejectsBadDimensions(t *testing.T) {
	_, err := GenerateMap(0, 4, 4, 1, GenerateOptions{})
	assert.Error(t, err)
	_, err = GenerateMap(4, 4, 4, 1, GenerateOptions{})
	assert.Error(t, err)
}

func TestMapBounds(t *testing.T) {
	m, err := NewMap(2, 2, 2)
	require.NoError(t, err)
	m.Set(5, 0, 0, 9)
	assert.Zero(t, m.At(5, 0, 0))
	assert.True(t, m.Solid(-1, 0, 0))
	assert.False(t, m.Solid(1, 1, 1))
	m.Set(1, 1, 1, 3)
	assert.True(t, m.Solid(1, 1, 1))
	assert.Equal(t, byte(3), m.Voxels()[7])
}

func TestCameraImpulses(t *testing.T) {
	c := NewCamera([3]float32{0, 0, 0}, [2]float32{Horizon, 0})
	c.AddRelativeImpulse(Forward, 1)
	mv := c.Movement()
	assert.InDelta(t, 1, mv[0], 1e-5)
	assert.InDelta(t, 0, mv[1], 1e-5)
	assert.InDelta(t, 0, mv[2], 1e-5)

	c.AddRelativeImpulse(Rearward, 1)
	mv = c.Movement()
	assert.InDelta(t, 0, mv[0], 1e-5)

	c.AddRelativeImpulse(Up, 2)
	assert.InDelta(t, 2, c.Movement()[2], 1e-5)

	c.AddRelativeImpulse(Down, 2)
	c.AddRelativeImpulse(Right, 1)
	mv = c.Movement()
	assert.InDelta(t, 0, mv[0], 1e-5)
	assert.InDelta(t, 1, mv[1], 1e-5)
	assert.InDelta(t, 0, mv[2], 1e-5)
}

func TestCameraUpdateDecays(t *testing.T) {
	c := NewCamera([3]float32{1, 1, 1}, [2]float32{Horizon, 0})
	c.AddStaticImpulse([3]float32{0.01, 0, 0})
	c.Update(0.5)
	assert.InDelta(t, 1+0.01*0.5*impulseScale, c.Position()[0], 1e-5)
	assert.Less(t, c.Movement()[0], float32(0.01))
	assert.Greater(t, c.Movement()[0], float32(0))

	c.Friction = 0
	c.Update(0.1)
	assert.Zero(t, c.Movement()[0])
}

func TestCameraSlewAndLookAt(t *testing.T) {
	c := NewCamera([3]float32{0, 0, 0}, [2]float32{Horizon, 0})
	c.Slew(10, 0)
	assert.InDelta(t, math32.Pi, c.Direction()[0], 1e-6)
	c.Slew(-20, 0)
	assert.Zero(t, c.Direction()[0])

	c.LookAt([3]float32{0, 5, 0})
	assert.InDelta(t, Horizon, c.Direction()[0], 1e-5)
	assert.InDelta(t, Horizon, c.Direction()[1], 1e-5)

	c.LookAt([3]float32{0, 0, -3})
	assert.InDelta(t, math32.Pi, c.Direction()[0], 1e-5)

	before := c.Direction()
	c.LookAt(c.Position())
	assert.Equal(t, before, c.Direction())
}

func TestLightPacking(t *testing.T) {
	l := Light{
		Position:  [3]float32{1, 2, 3},
		Color:     [3]float32{0.5, 0.25, 1},
		Intensity: 2,
		Constant:  1,
		Linear:    0.1,
		Quadratic: 0.01,
		Range:     20,
	}
	packed := Lights{l, l}.PackLights()
	require.Len(t, packed, 2*LightRecordSize)

	// Padding after the position stays zero.
	assert.Equal(t, []byte{0, 0, 0, 0}, packed[12:16])

	got, err := UnpackLight(packed[LightRecordSize:])
	require.NoError(t, err)
	assert.Equal(t, l, got)

	_, err = UnpackLight(packed[:10])
	assert.Error(t, err)
	assert.Zero(t, Lights(nil).LightCount())
	assert.Empty(t, Lights(nil).PackLights())
}

func TestDefaultLights(t *testing.T) {
	m, err := NewMap(16, 16, 8)
	require.NoError(t, err)
	ls := DefaultLights(m)
	assert.Equal(t, 2, ls.LightCount())
	for _, l := range ls {
		assert.Greater(t, l.Intensity, float32(0))
		assert.Less(t, l.Position[2], float32(8))
	}
}

func checker(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x+y)%2 == 0 {
				img.Set(x, y, color.NRGBA{R: 255, A: 255})
			} else {
				img.Set(x, y, color.NRGBA{B: 255, A: 255})
			}
		}
	}
	return img
}

func TestLoadAtlas(t *testing.T) {
	dir := t.TempDir()
	for _, tc := range []struct {
		name   string
		encode func(*os.File) error
	}{
		{"atlas.png", func(f *os.File) error { return png.Encode(f, checker(8, 4)) }},
		{"atlas.bmp", func(f *os.File) error { return bmp.Encode(f, checker(8, 4)) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			f, err := os.Create(path)
			require.NoError(t, err)
			require.NoError(t, tc.encode(f))
			require.NoError(t, f.Close())

			a, err := LoadAtlas(path, 4, 4)
			require.NoError(t, err)
			w, h := a.Size()
			assert.Equal(t, [2]int{8, 4}, [2]int{w, h})
			assert.Len(t, a.Pixels(), 8*4*4)
			assert.Equal(t, []byte{255, 0, 0, 255}, a.Pixels()[:4])
			assert.Equal(t, []byte{0, 0, 255, 255}, a.Pixels()[4:8])
			assert.Equal(t, 2, a.Tiles())
			assert.Equal(t, image.Rect(4, 0, 8, 4), a.Tile(1))
			assert.Same(t, a, a.Surface())
		})
	}

	_, err := LoadAtlas(filepath.Join(dir, "missing.png"), 4, 4)
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = LoadAtlas(bad, 4, 4)
	assert.ErrorIs(t, err, image.ErrFormat)
}

func TestNewAtlasTileFit(t *testing.T) {
	_, err := NewAtlas(checker(4, 4), 8, 4)
	assert.Error(t, err)

	a, err := NewAtlas(checker(4, 4), 0, 0)
	require.NoError(t, err)
	assert.Zero(t, a.Tiles())

	// Sub-images are copied to a zero origin.
	sub := checker(8, 8).SubImage(image.Rect(4, 4, 8, 8))
	a, err = NewAtlas(sub, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 4), a.Image().Rect)
}

func TestGenerateAtlas(t *testing.T) {
	a, err := GenerateAtlas(4, 16, 1)
	require.NoError(t, err)
	w, h := a.Size()
	assert.Equal(t, [2]int{64, 16}, [2]int{w, h})
	assert.Equal(t, 4, a.Tiles())
	tw, th := a.TileSize()
	assert.Equal(t, [2]int{16, 16}, [2]int{tw, th})
	for i := 3; i < len(a.Pixels()); i += 4 {
		require.Equal(t, byte(255), a.Pixels()[i])
	}

	b, err := GenerateAtlas(4, 16, 1)
	require.NoError(t, err)
	assert.Equal(t, a.Pixels(), b.Pixels())

	_, err = GenerateAtlas(0, 16, 1)
	assert.Error(t, err)
}
