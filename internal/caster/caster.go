// Package caster manages the compute resources of the voxel raycaster: it
// selects a device that can share memory with the display, owns the context
// and its single in-order queue, keeps named buffers and compiled kernels,
// binds kernel arguments and runs the per-frame acquire, dispatch, release
// and finish sequence.
//
// A Caster is not safe for concurrent use. All calls are expected from the
// thread that drives the display.
package caster

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"sort"

	"voxelcaster/internal/device"
)

// Buffer names registered by the setup operations. They match the
// raycaster's argument names.
const (
	BufMap                = "map"
	BufMapDimensions      = "map_dimensions"
	BufViewportResolution = "viewport_resolution"
	BufViewportMatrix     = "viewport_matrix"
	BufCameraDirection    = "camera_direction"
	BufCameraPosition     = "camera_position"
	BufLights             = "lights"
	BufLightCount         = "light_count"
	BufImage              = "image"
	BufTextureAtlas       = "texture_atlas"
	BufAtlasDimensions    = "atlas_dim"
	BufTileDimensions     = "tile_dim"
)

// LightRecordSize is the size of one packed light record.
const LightRecordSize = 48

// RaycasterLayout returns the buffer bound to each raycaster argument, in
// argument order.
func RaycasterLayout() []string {
	return []string{
		BufMap,
		BufMapDimensions,
		BufViewportResolution,
		BufViewportMatrix,
		BufCameraDirection,
		BufCameraPosition,
		BufLights,
		BufLightCount,
		BufImage,
		BufTextureAtlas,
		BufAtlasDimensions,
		BufTileDimensions,
	}
}

// MapProvider supplies the voxel volume. Voxels holds one byte per voxel,
// x fastest, then y, then z.
type MapProvider interface {
	Dimensions() (x, y, z int)
	Voxels() []byte
}

// CameraProvider is queried once per frame.
type CameraProvider interface {
	Position() [3]float32
	// Direction returns pitch and yaw in radians.
	Direction() [2]float32
}

// LightProvider supplies packed light records of LightRecordSize bytes.
type LightProvider interface {
	LightCount() int
	PackLights() []byte
}

// AtlasProvider supplies the texture atlas surface and its tile size.
type AtlasProvider interface {
	Surface() device.Surface
	TileSize() (width, height int)
}

// Options configure a Caster.
type Options struct {
	Driver  device.Driver
	Interop InteropDescriptor
	Logger  *slog.Logger
	// Preferred is tried before the selection predicate, typically the
	// device persisted by a previous run.
	Preferred DeviceMatcher
	// KernelSource is compiled by Init under KernelName when set.
	KernelSource string
	KernelIsPath bool
	// KernelName is the kernel Compute dispatches.
	KernelName string
	// FillColor is painted into a new viewport before its first frame.
	FillColor color.RGBA
}

// Caster owns one compute context and everything created on it.
type Caster struct {
	opts     Options
	log      *slog.Logger
	interop  InteropDescriptor
	registry *DeviceRegistry

	dev   device.DeviceInfo
	ctx   device.Context
	queue device.Queue

	buffers map[string]*Buffer
	kernels map[string]*Kernel
	layouts map[string][]string
	active  string

	viewport *Viewport
	camera   CameraProvider

	// held are shared objects acquired and not yet released.
	held  []device.Memory
	saved map[string][]byte

	generation   uint64
	validatedGen uint64
	validated    bool
	frames       uint64
	closed       bool
}

// New returns a Caster for opts. No device work happens until Init.
func New(opts Options) (*Caster, error) {
	if opts.Driver == nil {
		return nil, errors.New("caster: no driver")
	}
	if opts.Interop == nil {
		return nil, errors.New("caster: no interop descriptor")
	}
	if opts.KernelName == "" {
		return nil, errors.New("caster: no kernel name")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("driver", opts.Driver.Name(), "backend", opts.Interop.Name())
	return &Caster{
		opts:     opts,
		log:      log,
		interop:  opts.Interop,
		registry: NewDeviceRegistry(opts.Driver, log),
		buffers:  make(map[string]*Buffer),
		kernels:  make(map[string]*Kernel),
		layouts:  make(map[string][]string),
		saved:    make(map[string][]byte),
		active:   opts.KernelName,
	}, nil
}

// Init selects a device, creates the shared context and the queue, and
// compiles the configured kernel. Capability and build failures are fatal;
// the caller should Close the Caster and give up.
func (c *Caster) Init() error {
	const op = "init"
	if c.closed {
		return validationError(ErrClosed, op, "")
	}
	if c.ctx != nil {
		return validationError(ErrInvalid, op, "").withDetail("already initialised")
	}
	dev, err := c.registry.Select(c.opts.Preferred)
	if err != nil {
		return err
	}
	ctx, err := createSharedContext(c.opts.Driver, dev, c.interop)
	if err != nil {
		return err
	}
	q, err := createCommandQueue(ctx)
	if err != nil {
		if rerr := ctx.Release(); rerr != nil {
			c.log.Error("context release failed", "err", rerr)
		}
		return err
	}
	c.dev, c.ctx, c.queue = dev, ctx, q
	c.log.Info("compute device selected",
		"platform", dev.PlatformName,
		"device", dev.Name,
		"type", dev.Type,
		"compute_units", dev.Caps.ComputeUnits)

	if c.opts.KernelSource != "" {
		return c.CompileKernel(c.opts.KernelSource, c.opts.KernelIsPath, c.opts.KernelName)
	}
	return nil
}

// Device returns the selected device.
func (c *Caster) Device() device.DeviceInfo { return c.dev }

// Generation returns the binding generation. It advances whenever a
// binding may have changed.
func (c *Caster) Generation() uint64 { return c.generation }

func (c *Caster) ready(op string) error {
	if c.closed {
		return validationError(ErrClosed, op, "")
	}
	if c.ctx == nil {
		return validationError(ErrInvalid, op, "").withDetail("not initialised")
	}
	return nil
}

// AssignMap uploads the voxel volume and its dimensions.
func (c *Caster) AssignMap(m MapProvider) error {
	const op = "assign_map"
	if err := c.ready(op); err != nil {
		return err
	}
	x, y, z := m.Dimensions()
	voxels := m.Voxels()
	if x <= 0 || y <= 0 || z <= 0 || len(voxels) != x*y*z {
		return validationError(ErrInvalid, op, BufMap).withDetail("%dx%dx%d map with %d voxels", x, y, z, len(voxels))
	}
	return c.putHost(op, ReadOnly,
		hostUpdate{BufMap, voxels},
		hostUpdate{BufMapDimensions, encodeInts(x, y, z)})
}

// AssignCamera uploads the camera now and again before every frame.
func (c *Caster) AssignCamera(cam CameraProvider) error {
	const op = "assign_camera"
	if err := c.ready(op); err != nil {
		return err
	}
	pos, dir := cam.Position(), cam.Direction()
	err := c.putHost(op, ReadOnly,
		hostUpdate{BufCameraDirection, encodeFloats(dir[0], dir[1], 0, 0)},
		hostUpdate{BufCameraPosition, encodeFloats(pos[0], pos[1], pos[2], 0)})
	if err != nil {
		return err
	}
	c.camera = cam
	return nil
}

// AssignLights uploads the packed light array and the light count. An
// empty list still allocates one zeroed record.
func (c *Caster) AssignLights(l LightProvider) error {
	const op = "assign_lights"
	if err := c.ready(op); err != nil {
		return err
	}
	n := l.LightCount()
	packed := l.PackLights()
	if n < 0 || len(packed) != n*LightRecordSize {
		return validationError(ErrInvalid, op, BufLights).withDetail("%d lights in %d bytes", n, len(packed))
	}
	if n == 0 {
		packed = make([]byte, LightRecordSize)
	}
	return c.putHost(op, ReadOnly,
		hostUpdate{BufLights, packed},
		hostUpdate{BufLightCount, encodeInts(n)})
}

// CreateTextureAtlas binds the atlas surface and uploads the atlas and tile
// dimensions.
func (c *Caster) CreateTextureAtlas(a AtlasProvider) error {
	const op = "create_texture_atlas"
	if err := c.ready(op); err != nil {
		return err
	}
	s := a.Surface()
	if s == nil {
		return validationError(ErrInvalid, op, BufTextureAtlas).withDetail("nil surface")
	}
	w, h := s.Size()
	tw, th := a.TileSize()
	if tw < 0 || th < 0 || tw > w || th > h {
		return validationError(ErrInvalid, op, BufTextureAtlas).withDetail("%dx%d tiles in a %dx%d atlas", tw, th, w, h)
	}
	atlas, err := c.allocSurface(op, BufTextureAtlas, s, ReadOnly)
	if err != nil {
		return err
	}
	dims, err := c.allocHostSet(op, ReadOnly, []hostUpdate{
		{BufAtlasDimensions, encodeInts(w, h)},
		{BufTileDimensions, encodeInts(tw, th)},
	})
	if err != nil {
		c.releaseBuffers([]*Buffer{atlas})
		return err
	}
	c.swap(append([]*Buffer{atlas}, dims...)...)
	return nil
}

// Draw hands the viewport surface to target.
func (c *Caster) Draw(target DrawTarget) error {
	if c.viewport == nil {
		return validationError(ErrInvalid, "draw", BufImage).withDetail("no viewport")
	}
	if err := target.DrawSurface(c.viewport.surface); err != nil {
		return executionError("draw", err)
	}
	return nil
}

// DebugQuickRecompile rebuilds the active kernel from the source it was built from,
// restores its recorded layout and validates. A failed build keeps the
// previous kernel and its bindings.
func (c *Caster) DebugQuickRecompile() error {
	k, ok := c.kernels[c.active]
	if !ok {
		return registryError(ErrNotFound, "debug_quick_recompile", c.active)
	}
	if err := c.CompileKernel(k.source, k.isPath, k.Name); err != nil {
		return err
	}
	if layout, ok := c.layouts[k.Name]; ok {
		if err := c.BindLayout(k.Name, layout); err != nil {
			return err
		}
	}
	return c.Validate()
}

// KernelPath returns the file the active kernel was compiled from, or "" if
// it came from an inline source.
func (c *Caster) KernelPath() string {
	if k, ok := c.kernels[c.active]; ok && k.isPath {
		return k.source
	}
	return ""
}

// Close drains the queue and releases buffers, kernels, the queue and the
// context, in that order. It is safe to call more than once.
func (c *Caster) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ctx == nil {
		return nil
	}
	var errs []error
	if err := c.queue.Finish(); err != nil {
		errs = append(errs, fmt.Errorf("finish: %w", err))
	}
	if err := c.handBack(); err != nil {
		errs = append(errs, fmt.Errorf("release shared: %w", err))
	}
	c.saved = map[string][]byte{}

	names := make([]string, 0, len(c.buffers))
	for name := range c.buffers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.buffers[name].mem.Release(); err != nil {
			errs = append(errs, fmt.Errorf("buffer %s: %w", name, err))
		}
	}
	c.buffers = map[string]*Buffer{}

	for _, name := range c.Kernels() {
		if err := c.releaseKernel(c.kernels[name]); err != nil {
			errs = append(errs, fmt.Errorf("kernel %s: %w", name, err))
		}
	}
	c.kernels = map[string]*Kernel{}

	if err := c.queue.Release(); err != nil {
		errs = append(errs, fmt.Errorf("queue: %w", err))
	}
	if err := c.ctx.Release(); err != nil {
		errs = append(errs, fmt.Errorf("context: %w", err))
	}
	c.viewport = nil
	c.log.Info("compute resources released", "frames", c.frames)
	if len(errs) > 0 {
		return deviceError("close", "", errors.Join(errs...))
	}
	return nil
}
