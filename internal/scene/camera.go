package scene

import (
	"github.com/chewxy/math32"
)

// Heading names a movement direction relative to where the camera looks.
type Heading int

const (
	Forward Heading = iota
	Rearward
	Left
	Right
	Up
	Down
)

// Horizon is the pitch at which the camera looks level.
const Horizon = math32.Pi / 2

const (
	impulseScale    = 80
	defaultFriction = 0.1
)

// Camera is a free-flying camera. Direction is pitch and yaw in radians;
// pitch 0 looks straight up, Horizon looks level and Pi straight down.
type Camera struct {
	pos      [3]float32
	dir      [2]float32
	movement [3]float32
	// Friction is the fraction of momentum kept per second.
	Friction float32
}

// NewCamera returns a camera at pos looking along dir.
func NewCamera(pos [3]float32, dir [2]float32) *Camera {
	return &Camera{pos: pos, dir: dir, Friction: defaultFriction}
}

func (c *Camera) Position() [3]float32  { return c.pos }
func (c *Camera) Direction() [2]float32 { return c.dir }
func (c *Camera) Movement() [3]float32  { return c.movement }

func (c *Camera) SetPosition(p [3]float32)  { c.pos = p }
func (c *Camera) SetDirection(d [2]float32) { c.dir = d }

// sphereToCart converts a yaw, pitch pair on the unit sphere to a vector.
func sphereToCart(yaw, pitch float32) [3]float32 {
	sp, cp := math32.Sincos(pitch)
	sy, cy := math32.Sincos(yaw)
	return [3]float32{sp * cy, sp * sy, cp}
}

// AddStaticImpulse adds v to the camera momentum.
func (c *Camera) AddStaticImpulse(v [3]float32) {
	for i := range v {
		c.movement[i] += v[i]
	}
}

// AddRelativeImpulse pushes the camera along h at speed.
func (c *Camera) AddRelativeImpulse(h Heading, speed float32) {
	pitch, yaw := c.dir[0], c.dir[1]
	var v [3]float32
	switch h {
	case Forward:
		v = sphereToCart(yaw, pitch)
	case Rearward:
		v = sphereToCart(yaw, pitch+math32.Pi)
	case Left:
		v = sphereToCart(yaw+math32.Pi*3/2, Horizon)
	case Right:
		v = sphereToCart(yaw+math32.Pi/2, Horizon)
	case Up:
		v = sphereToCart(yaw, pitch-Horizon)
	case Down:
		v = sphereToCart(yaw, pitch+Horizon)
	}
	for i := range v {
		c.movement[i] += v[i] * speed
	}
}

// Slew turns the camera by the given pitch and yaw deltas. Pitch is kept
// within [0, Pi].
func (c *Camera) Slew(dPitch, dYaw float32) {
	c.dir[0] = min(max(c.dir[0]+dPitch, 0), math32.Pi)
	c.dir[1] = math32.Mod(c.dir[1]+dYaw, 2*math32.Pi)
}

// Update advances the camera by dt seconds and decays its momentum.
func (c *Camera) Update(dt float32) {
	for i := range c.pos {
		c.pos[i] += c.movement[i] * dt * impulseScale
	}
	keep := math32.Pow(min(max(c.Friction, 0), 1), dt)
	for i := range c.movement {
		c.movement[i] *= keep
	}
}

// LookAt turns the camera towards target.
func (c *Camera) LookAt(target [3]float32) {
	dx, dy, dz := target[0]-c.pos[0], target[1]-c.pos[1], target[2]-c.pos[2]
	r := math32.Sqrt(dx*dx + dy*dy + dz*dz)
	if r == 0 {
		return
	}
	c.dir = [2]float32{math32.Acos(dz / r), math32.Atan2(dy, dx)}
}
