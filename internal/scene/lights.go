package scene

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"
)

// LightRecordSize is the byte size of a packed Light.
const LightRecordSize = 48

// Light is a point light. Its packed form is twelve little-endian float32s:
//
//	 0..15  position x, y, z, padding
//	16..31  colour r, g, b and intensity
//	32..47  falloff constant, linear, quadratic and range
//
// A Range of 0 means unlimited.
type Light struct {
	Position  [3]float32
	Color     [3]float32
	Intensity float32
	Constant  float32
	Linear    float32
	Quadratic float32
	Range     float32
}

// Pack writes the record into dst, which must hold LightRecordSize bytes.
func (l Light) Pack(dst []byte) {
	fields := [12]float32{
		l.Position[0], l.Position[1], l.Position[2], 0,
		l.Color[0], l.Color[1], l.Color[2], l.Intensity,
		l.Constant, l.Linear, l.Quadratic, l.Range,
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(dst[i*4:], math32.Float32bits(f))
	}
}

// UnpackLight decodes one packed record.
func UnpackLight(b []byte) (Light, error) {
	if len(b) < LightRecordSize {
		return Light{}, fmt.Errorf("scene: light record holds %d of %d bytes", len(b), LightRecordSize)
	}
	f := func(i int) float32 { return math32.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])) }
	return Light{
		Position:  [3]float32{f(0), f(1), f(2)},
		Color:     [3]float32{f(4), f(5), f(6)},
		Intensity: f(7),
		Constant:  f(8),
		Linear:    f(9),
		Quadratic: f(10),
		Range:     f(11),
	}, nil
}

// Lights is an ordered light list.
type Lights []Light

func (ls Lights) LightCount() int { return len(ls) }

// PackLights returns the list packed back to back.
func (ls Lights) PackLights() []byte {
	out := make([]byte, len(ls)*LightRecordSize)
	for i, l := range ls {
		l.Pack(out[i*LightRecordSize:])
	}
	return out
}

// DefaultLights places a warm light over the map centre and a dimmer cool
// one in a corner.
func DefaultLights(m *Map) Lights {
	x, y, z := float32(m.X), float32(m.Y), float32(m.Z)
	return Lights{
		{
			Position:  [3]float32{x / 2, y / 2, z - 1},
			Color:     [3]float32{1, 0.9, 0.75},
			Intensity: 1.2,
			Constant:  1,
			Linear:    0.02,
			Quadratic: 0.002,
		},
		{
			Position:  [3]float32{2, 2, z / 2},
			Color:     [3]float32{0.6, 0.7, 1},
			Intensity: 0.6,
			Constant:  1,
			Linear:    0.05,
			Range:     max(x, y) / 2,
		},
	}
}
