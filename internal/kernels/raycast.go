package kernels

import (
	"encoding/binary"
	"fmt"

	"github.com/chewxy/math32"

	"voxelcaster/internal/device/host"
)

const (
	maxSteps = 512
	ambient  = 0.15
)

type vec3 [3]float32

func (a vec3) add(b vec3) vec3      { return vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }
func (a vec3) sub(b vec3) vec3      { return vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }
func (a vec3) scale(s float32) vec3 { return vec3{a[0] * s, a[1] * s, a[2] * s} }
func (a vec3) dot(b vec3) float32   { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }
func (a vec3) mul(b vec3) vec3      { return vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }

type light struct {
	pos, color                           vec3
	intensity                            float32
	constant, linear, quadratic, reach float32
}

// raycast is the decoded argument set of one raycaster dispatch.
type raycast struct {
	voxels                 []byte
	dim                    [3]int
	width                  int
	rays                   []byte
	sinP, cosP, sinY, cosY float32
	origin                 vec3
	lights                 []light
	image                  []byte
	atlas                  []byte
	atlasW, atlasH         int
	tileW, tileH           int
}

func f32(b []byte, i int) float32 {
	return math32.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func i32(b []byte, i int) int {
	return int(int32(binary.LittleEndian.Uint32(b[i*4:])))
}

func need(name string, b []byte, n int) error {
	if len(b) < n {
		return fmt.Errorf("raycaster: %s holds %d bytes, need %d", name, len(b), n)
	}
	return nil
}

func prepareRaycast(args [][]byte, width, height int) (host.Invocation, error) {
	for _, c := range []struct {
		name string
		slot int
		n    int
	}{
		{"map_dimensions", ArgMapDimensions, 12},
		{"viewport_resolution", ArgViewportResolution, 8},
		{"viewport_matrix", ArgViewportMatrix, width * height * 16},
		{"camera_direction", ArgCameraDirection, 8},
		{"camera_position", ArgCameraPosition, 12},
		{"light_count", ArgLightCount, 4},
		{"image", ArgImage, width * height * 4},
		{"atlas_dim", ArgAtlasDimensions, 8},
		{"tile_dim", ArgTileDimensions, 8},
	} {
		if err := need(c.name, args[c.slot], c.n); err != nil {
			return nil, err
		}
	}

	r := &raycast{
		voxels: args[ArgMap],
		dim:    [3]int{i32(args[ArgMapDimensions], 0), i32(args[ArgMapDimensions], 1), i32(args[ArgMapDimensions], 2)},
		width:  i32(args[ArgViewportResolution], 0),
		rays:   args[ArgViewportMatrix],
		image:  args[ArgImage],
		atlas:  args[ArgTextureAtlas],
		atlasW: i32(args[ArgAtlasDimensions], 0),
		atlasH: i32(args[ArgAtlasDimensions], 1),
		tileW:  i32(args[ArgTileDimensions], 0),
		tileH:  i32(args[ArgTileDimensions], 1),
	}
	if r.width != width || i32(args[ArgViewportResolution], 1) != height {
		return nil, fmt.Errorf("raycaster: viewport resolution %dx%d does not match the %dx%d domain",
			r.width, i32(args[ArgViewportResolution], 1), width, height)
	}
	if r.dim[0] <= 0 || r.dim[1] <= 0 || r.dim[2] <= 0 {
		return nil, fmt.Errorf("raycaster: map dimensions %v", r.dim)
	}
	if err := need("map", r.voxels, r.dim[0]*r.dim[1]*r.dim[2]); err != nil {
		return nil, err
	}
	if r.atlasW > 0 && r.atlasH > 0 {
		if err := need("texture_atlas", r.atlas, r.atlasW*r.atlasH*4); err != nil {
			return nil, err
		}
	}

	dir, pos := args[ArgCameraDirection], args[ArgCameraPosition]
	r.sinP, r.cosP = math32.Sincos(f32(dir, 0))
	r.sinY, r.cosY = math32.Sincos(f32(dir, 1))
	r.origin = vec3{f32(pos, 0), f32(pos, 1), f32(pos, 2)}

	count := i32(args[ArgLightCount], 0)
	if count < 0 {
		return nil, fmt.Errorf("raycaster: light count %d", count)
	}
	if err := need("lights", args[ArgLights], count*LightRecordSize); err != nil {
		return nil, err
	}
	r.lights = make([]light, count)
	for i := range r.lights {
		rec := args[ArgLights][i*LightRecordSize:]
		r.lights[i] = light{
			pos:       vec3{f32(rec, 0), f32(rec, 1), f32(rec, 2)},
			color:     vec3{f32(rec, 4), f32(rec, 5), f32(rec, 6)},
			intensity: f32(rec, 7),
			constant:  f32(rec, 8),
			linear:    f32(rec, 9),
			quadratic: f32(rec, 10),
			reach:     f32(rec, 11),
		}
	}
	return r.trace, nil
}

func (r *raycast) trace(x, y int) {
	pixel := x + r.width*y
	base := vec3{f32(r.rays, pixel*4), f32(r.rays, pixel*4+1), f32(r.rays, pixel*4+2)}

	// Pitch about Y, then yaw about Z.
	d := vec3{base[2]*r.sinP + base[0]*r.cosP, base[1], base[2]*r.cosP - base[0]*r.sinP}
	d = vec3{d[0]*r.cosY - d[1]*r.sinY, d[0]*r.sinY + d[1]*r.cosY, d[2]}

	var voxel, step [3]int
	var delta, next vec3
	for a := 0; a < 3; a++ {
		voxel[a] = int(math32.Floor(r.origin[a]))
		step[a] = 1
		if d[a] < 0 {
			step[a] = -1
		}
		delta[a] = math32.Abs(1 / d[a])
		edge := float32(voxel[a])
		if step[a] > 0 {
			edge++
		}
		next[a] = math32.Abs((edge - r.origin[a]) / d[a])
	}

	for i := 0; i < maxSteps; i++ {
		face := 2
		if next[0] < next[1] && next[0] < next[2] {
			face = 0
		} else if next[1] < next[2] {
			face = 1
		}
		t := next[face]
		voxel[face] += step[face]
		next[face] += delta[face]

		inside := true
		for a := 0; a < 3; a++ {
			if (voxel[a] < 0 && step[a] < 0) || (voxel[a] >= r.dim[a] && step[a] > 0) {
				r.sky(pixel, d)
				return
			}
			if voxel[a] < 0 || voxel[a] >= r.dim[a] {
				inside = false
			}
		}
		if !inside {
			continue
		}
		v := r.voxels[voxel[0]+r.dim[0]*(voxel[1]+r.dim[1]*voxel[2])]
		if v == 0 {
			continue
		}
		r.shade(pixel, v, face, step[face], r.origin.add(d.scale(t)))
		return
	}
	r.sky(pixel, d)
}

func frac(f float32) float32 { return f - math32.Floor(f) }

func (r *raycast) shade(pixel int, v byte, face, step int, hit vec3) {
	var normal vec3
	normal[face] = float32(-step)
	var u, w float32
	switch face {
	case 0:
		u, w = frac(hit[1]), frac(hit[2])
	case 1:
		u, w = frac(hit[0]), frac(hit[2])
	default:
		u, w = frac(hit[0]), frac(hit[1])
	}

	base := r.sample(v, u, w)
	lit := vec3{ambient, ambient, ambient}
	for _, l := range r.lights {
		to := l.pos.sub(hit)
		dist := math32.Sqrt(to.dot(to))
		if l.reach > 0 && dist > l.reach {
			continue
		}
		ndotl := float32(0)
		if dist > 0 {
			ndotl = math32.Max(normal.dot(to.scale(1/dist)), 0)
		}
		denom := l.constant + l.linear*dist + l.quadratic*dist*dist
		if denom <= 0 {
			denom = 1
		}
		lit = lit.add(l.color.scale(l.intensity * ndotl / denom))
	}
	r.put(pixel, base.mul(lit))
}

func tileColor(v byte) vec3 {
	h := uint32(v) * 2654435761
	return vec3{
		0.35 + float32((h>>8)&0xff)/512,
		0.35 + float32((h>>16)&0xff)/512,
		0.35 + float32((h>>24)&0xff)/512,
	}
}

func (r *raycast) sample(v byte, u, w float32) vec3 {
	if r.tileW <= 0 || r.tileH <= 0 || r.atlasW < r.tileW || r.atlasH < r.tileH {
		return tileColor(v)
	}
	perRow := r.atlasW / r.tileW
	tile := int(v) - 1
	tx, ty := tile%perRow, tile/perRow
	if (ty+1)*r.tileH > r.atlasH {
		return tileColor(v)
	}
	px := tx*r.tileW + clampInt(int(u*float32(r.tileW)), 0, r.tileW-1)
	py := ty*r.tileH + clampInt(int((1-w)*float32(r.tileH)), 0, r.tileH-1)
	i := (py*r.atlasW + px) * 4
	return vec3{float32(r.atlas[i]) / 255, float32(r.atlas[i+1]) / 255, float32(r.atlas[i+2]) / 255}
}

func (r *raycast) sky(pixel int, d vec3) {
	k := clamp01(d[2]*0.5 + 0.5)
	horizon := vec3{0.75, 0.80, 0.90}
	zenith := vec3{0.35, 0.55, 0.85}
	r.put(pixel, horizon.scale(1-k).add(zenith.scale(k)))
}

func (r *raycast) put(pixel int, c vec3) {
	i := pixel * 4
	r.image[i] = byte(clamp01(c[0]) * 255)
	r.image[i+1] = byte(clamp01(c[1]) * 255)
	r.image[i+2] = byte(clamp01(c[2]) * 255)
	r.image[i+3] = 255
}

func clamp01(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
