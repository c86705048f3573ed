package host

import (
	"voxelcaster/internal/device"
)

type hostContext struct {
	driver   *Driver
	dev      device.DeviceInfo
	props    device.Properties
	children int
	released bool
}

func (c *hostContext) Device() device.DeviceInfo { return c.dev }

func (c *hostContext) check(op string) error {
	if c.released {
		return device.Errorf(op, device.StatusInvalidContext, "context released")
	}
	return nil
}

func (c *hostContext) adopt(r Resource) {
	c.children++
	c.driver.track(r, 1)
}

func (c *hostContext) orphan(r Resource) {
	c.children--
	c.driver.track(r, -1)
}

func (c *hostContext) CreateQueue() (device.Queue, error) {
	if err := c.check("clCreateCommandQueue"); err != nil {
		return nil, err
	}
	if err := c.driver.fault("create_queue"); err != nil {
		return nil, err
	}
	c.adopt(ResQueue)
	return &queue{ctx: c}, nil
}

func (c *hostContext) CreateBuffer(flags device.MemFlags, size int, data []byte) (device.Memory, error) {
	const op = "clCreateBuffer"
	if err := c.check(op); err != nil {
		return nil, err
	}
	if err := c.driver.fault("create_buffer"); err != nil {
		return nil, err
	}
	if size <= 0 || uint64(size) > c.dev.Caps.MaxMemAllocSize {
		return nil, device.Errorf(op, device.StatusInvalidBufferSize, "size %d", size)
	}
	if data != nil && len(data) < size {
		return nil, device.Errorf(op, device.StatusInvalidHostPtr, "host data holds %d of %d bytes", len(data), size)
	}
	buf := make([]byte, size)
	if data != nil {
		copy(buf, data)
	}
	c.adopt(ResBuffer)
	return &memory{ctx: c, data: buf, flags: flags}, nil
}

func (c *hostContext) CreateFromSurface(flags device.MemFlags, s device.Surface) (device.Memory, error) {
	const op = "clCreateFromGLTexture"
	if err := c.check(op); err != nil {
		return nil, err
	}
	if c.props.Sharing == device.SharingNone {
		return nil, device.Errorf(op, device.StatusInvalidContext, "context was created without sharing")
	}
	if err := c.driver.fault("create_buffer"); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, device.Errorf(op, device.StatusInvalidGLObject, "nil surface")
	}
	w, h := s.Size()
	pix := s.Pixels()
	if w <= 0 || h <= 0 || len(pix) != w*h*4 {
		return nil, device.Errorf(op, device.StatusInvalidImageSize, "%dx%d surface with %d bytes", w, h, len(pix))
	}
	c.adopt(ResBuffer)
	return &memory{ctx: c, data: pix, flags: flags, surface: s}, nil
}

func (c *hostContext) BuildProgram(source string) (device.Program, error) {
	if err := c.check("clBuildProgram"); err != nil {
		return nil, err
	}
	if err := c.driver.fault("build"); err != nil {
		return nil, err
	}
	entries, log := compile(source)
	if log.failed() {
		return nil, &device.StatusError{
			Op:     "clBuildProgram",
			Status: device.StatusBuildProgramFailure,
			Log:    log.String(),
		}
	}
	c.adopt(ResProgram)
	return &program{ctx: c, entries: entries, log: log.String()}, nil
}

func (c *hostContext) Release() error {
	if err := c.check("clReleaseContext"); err != nil {
		return err
	}
	if c.children > 0 {
		return device.Errorf("clReleaseContext", device.StatusInvalidOperation, "%d objects still alive", c.children)
	}
	c.released = true
	c.driver.track(ResContext, -1)
	return nil
}

// memory is a host allocation. Surface-backed memory aliases the surface
// pixels, so kernel writes land in the display buffer without a copy.
type memory struct {
	ctx      *hostContext
	data     []byte
	flags    device.MemFlags
	surface  device.Surface
	acquired bool
	released bool
}

func (m *memory) Size() int              { return len(m.data) }
func (m *memory) Flags() device.MemFlags { return m.flags }
func (m *memory) Shared() bool           { return m.surface != nil }

func (m *memory) Release() error {
	if m.released {
		return device.Errorf("clReleaseMemObject", device.StatusInvalidMemObject, "already released")
	}
	if m.acquired {
		return device.Errorf("clReleaseMemObject", device.StatusInvalidOperation, "shared object still acquired")
	}
	m.released = true
	m.data = nil
	m.ctx.orphan(ResBuffer)
	return nil
}

func asMemory(op string, ctx *hostContext, m device.Memory) (*memory, error) {
	mem, ok := m.(*memory)
	if !ok || mem == nil || mem.released || mem.ctx != ctx {
		return nil, device.Errorf(op, device.StatusInvalidMemObject, "not a live object of this context")
	}
	return mem, nil
}
