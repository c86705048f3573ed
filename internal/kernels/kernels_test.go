package kernels

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floats(vs ...float32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func ints(vs ...int32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(b[i*4:], uint32(v))
	}
	return b
}

// corridor is a 4x1x1 map looking down +X from the first voxel.
func corridor(last byte, lights []byte, count int32) [][]byte {
	args := make([][]byte, raycasterArity)
	args[ArgMap] = []byte{0, 0, 0, last}
	args[ArgMapDimensions] = ints(4, 1, 1)
	args[ArgViewportResolution] = ints(1, 1)
	args[ArgViewportMatrix] = floats(1, 0, 0, 0)
	args[ArgCameraDirection] = floats(0, 0, 0, 0)
	args[ArgCameraPosition] = floats(0.5, 0.5, 0.5, 0)
	args[ArgLights] = lights
	args[ArgLightCount] = ints(count)
	args[ArgImage] = make([]byte, 4)
	args[ArgTextureAtlas] = make([]byte, 4)
	args[ArgAtlasDimensions] = ints(0, 0)
	args[ArgTileDimensions] = ints(0, 0)
	return args
}

func render(t *testing.T, args [][]byte) []byte {
	t.Helper()
	inv, err := prepareRaycast(args, 1, 1)
	require.NoError(t, err)
	inv(0, 0)
	return args[ArgImage]
}

func TestSourceDeclaresEntries(t *testing.T) {
	src, err := Source(Raycaster)
	require.NoError(t, err)
	assert.Contains(t, src, "__kernel void raycaster(")

	src, err = Source(Passthrough)
	require.NoError(t, err)
	assert.Contains(t, src, "__kernel void passthrough(")

	_, err = Source("nope")
	assert.Error(t, err)
}

func TestRaycastHitsWall(t *testing.T) {
	dark := render(t, corridor(1, make([]byte, 4), 0))
	assert.Equal(t, byte(255), dark[3])

	light := floats(
		0.5, 0.5, 0.5, 0,
		1, 1, 1, 1,
		1, 0, 0, 0,
	)
	lit := render(t, corridor(1, light, 1))
	for c := 0; c < 3; c++ {
		assert.Greater(t, lit[c], dark[c], "channel %d", c)
	}

	far := floats(
		0.5, 0.5, 0.5, 0,
		1, 1, 1, 1,
		1, 0, 0, 1,
	)
	assert.Equal(t, dark, render(t, corridor(1, far, 1)), "lights out of range contribute nothing")
}

func TestRaycastMissShowsSky(t *testing.T) {
	px := render(t, corridor(0, make([]byte, 4), 0))
	assert.Equal(t, byte(255), px[3])
	assert.Greater(t, px[2], px[0])
}

func TestRaycastSamplesAtlas(t *testing.T) {
	args := corridor(2, make([]byte, 4), 0)
	// Two 1x1 tiles side by side; voxel 2 samples the second.
	args[ArgTextureAtlas] = []byte{255, 0, 0, 255, 0, 0, 255, 255}
	args[ArgAtlasDimensions] = ints(2, 1)
	args[ArgTileDimensions] = ints(1, 1)
	px := render(t, args)
	assert.Zero(t, px[0])
	assert.Zero(t, px[1])
	assert.Equal(t, byte(38), px[2], "ambient only")
}

func TestRaycastRejectsBadArguments(t *testing.T) {
	args := corridor(1, make([]byte, 4), 0)
	args[ArgViewportResolution] = ints(2, 2)
	_, err := prepareRaycast(args, 1, 1)
	assert.ErrorContains(t, err, "does not match")

	args = corridor(1, make([]byte, 4), 2)
	_, err = prepareRaycast(args, 1, 1)
	assert.ErrorContains(t, err, "lights")

	args = corridor(1, make([]byte, 4), 0)
	args[ArgMapDimensions] = ints(8, 8, 8)
	_, err = prepareRaycast(args, 1, 1)
	assert.ErrorContains(t, err, "map")
}

func TestPassthroughCopiesPixels(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	out := make([]byte, len(in))
	inv, err := preparePassthrough([][]byte{in, out}, 2, 2)
	require.NoError(t, err)
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			inv(x, y)
		}
	}
	assert.Equal(t, in, out)

	_, err = preparePassthrough([][]byte{in, out}, 3, 2)
	assert.Error(t, err)
}
