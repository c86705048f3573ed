// Package scene provides the data the caster uploads: the voxel map, the
// camera, packed lights and the texture atlas.
package scene

import (
	"fmt"
	"math/rand"
)

// Map is a voxel volume with one byte per voxel. 0 is empty, n > 0 is solid
// and textured with atlas tile n-1. Voxels are stored x fastest, then y,
// then z, with z pointing up.
type Map struct {
	X, Y, Z int
	voxels  []byte
}

// NewMap returns an empty map.
func NewMap(x, y, z int) (*Map, error) {
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("scene: map dimensions %dx%dx%d", x, y, z)
	}
	return &Map{X: x, Y: y, Z: z, voxels: make([]byte, x*y*z)}, nil
}

func (m *Map) Dimensions() (int, int, int) { return m.X, m.Y, m.Z }

// Voxels returns the backing array, ready for upload.
func (m *Map) Voxels() []byte { return m.voxels }

func (m *Map) inside(x, y, z int) bool {
	return x >= 0 && x < m.X && y >= 0 && y < m.Y && z >= 0 && z < m.Z
}

// At returns the voxel at x, y, z, or 0 outside the map.
func (m *Map) At(x, y, z int) byte {
	if !m.inside(x, y, z) {
		return 0
	}
	return m.voxels[x+m.X*(y+m.Y*z)]
}

// Set writes a voxel. Writes outside the map are ignored.
func (m *Map) Set(x, y, z int, v byte) {
	if !m.inside(x, y, z) {
		return
	}
	m.voxels[x+m.X*(y+m.Y*z)] = v
}

// Solid reports whether a voxel blocks movement. Everything outside the map
// is solid.
func (m *Map) Solid(x, y, z int) bool {
	if !m.inside(x, y, z) {
		return true
	}
	return m.At(x, y, z) != 0
}

// GenerateOptions shape GenerateMap.
type GenerateOptions struct {
	Segments          int
	MinLen, MaxLen    int
	ThicknessVariance int
	// WallHeight is the height of generated walls above the floor.
	WallHeight int
	// Tiles is the number of atlas tiles walls pick from. Tile 0 is the
	// floor.
	Tiles int
	// ClearX, ClearY and ClearRadius keep a column free of walls, usually
	// around the camera start.
	ClearX, ClearY, ClearRadius int
}

// DefaultGenerateOptions returns options scaled to a map of x by y voxels.
func DefaultGenerateOptions(x, y int) GenerateOptions {
	return GenerateOptions{
		Segments:          (x + y) / 8,
		MinLen:            4,
		MaxLen:            max(4, min(x, y)/2),
		ThicknessVariance: 1,
		WallHeight:        6,
		Tiles:             4,
		ClearX:            x / 2,
		ClearY:            y / 2,
		ClearRadius:       3,
	}
}

// GenerateMap builds a floor, a perimeter wall and random wall segments.
// The same seed always yields the same map.
func GenerateMap(x, y, z int, seed int64, opts GenerateOptions) (*Map, error) {
	m, err := NewMap(x, y, z)
	if err != nil {
		return nil, err
	}
	if x < 5 || y < 5 {
		return nil, fmt.Errorf("scene: %dx%d map is too small for walls", x, y)
	}
	tiles := max(opts.Tiles, 1)
	height := min(max(opts.WallHeight, 1), z-1)
	rng := rand.New(rand.NewSource(seed))

	for j := 0; j < y; j++ {
		for i := 0; i < x; i++ {
			m.Set(i, j, 0, 1)
			if i == 0 || j == 0 || i == x-1 || j == y-1 {
				for k := 1; k <= height; k++ {
					m.Set(i, j, k, 2)
				}
			}
		}
	}

	for s := 0; s < opts.Segments; s++ {
		lengthRange := opts.MaxLen - opts.MinLen + 1
		if lengthRange <= 0 {
			lengthRange = 1
		}
		length := opts.MinLen + rng.Intn(lengthRange)
		thickness := 0
		if opts.ThicknessVariance > 0 {
			thickness = rng.Intn(opts.ThicknessVariance + 1)
		}
		horizontal := rng.Intn(2) == 0
		cx := rng.Intn(x-4) + 2
		cy := rng.Intn(y-4) + 2
		dx, dy := 0, 1
		if horizontal {
			dx, dy = 1, 0
		}
		perpX, perpY := dy, dx
		tile := byte(1 + rng.Intn(tiles))
		for l := 0; l < length; l++ {
			if cx <= 1 || cx >= x-1 || cy <= 1 || cy >= y-1 {
				break
			}
			for t := -thickness; t <= thickness; t++ {
				m.placeWall(cx+perpX*t, cy+perpY*t, height, tile, opts)
			}
			cx += dx
			cy += dy
		}
	}
	return m, nil
}

// placeWall raises a column at x, y unless it falls inside the clear zone.
func (m *Map) placeWall(x, y, height int, tile byte, opts GenerateOptions) {
	if x <= 0 || x >= m.X-1 || y <= 0 || y >= m.Y-1 {
		return
	}
	dx, dy := x-opts.ClearX, y-opts.ClearY
	if dx*dx+dy*dy < opts.ClearRadius*opts.ClearRadius {
		return
	}
	for k := 1; k <= height; k++ {
		m.Set(x, y, k, tile)
	}
}
