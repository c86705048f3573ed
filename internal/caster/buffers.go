package caster

import (
	"encoding/binary"
	"sort"

	"github.com/chewxy/math32"

	"voxelcaster/internal/device"
)

// Access is the kernel-side access mode of a buffer.
type Access int

const (
	ReadOnly Access = iota
	WriteOnly
	ReadWrite
)

func (a Access) String() string {
	switch a {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return "read-write"
	}
}

func (a Access) flags() device.MemFlags {
	switch a {
	case ReadOnly:
		return device.MemReadOnly
	case WriteOnly:
		return device.MemWriteOnly
	default:
		return device.MemReadWrite
	}
}

// Backing says where a buffer's storage comes from.
type Backing int

const (
	// BackingHost buffers are copied from host memory at creation.
	BackingHost Backing = iota
	// BackingSurface buffers are bound to a rendering surface and must be
	// acquired around every dispatch.
	BackingSurface
)

func (b Backing) String() string {
	if b == BackingSurface {
		return "surface"
	}
	return "host"
}

// Buffer is a named device memory object.
type Buffer struct {
	Name    string
	Size    int
	Access  Access
	Backing Backing

	mem     device.Memory
	surface device.Surface
}

// BufferInfo is the exported view of a registered buffer.
type BufferInfo struct {
	Name    string
	Size    int
	Access  Access
	Backing Backing
}

// CreateBuffer allocates size bytes of device memory, copies data into it
// when data is not nil, and registers it under name.
func (c *Caster) CreateBuffer(name string, size int, data []byte, access Access) error {
	const op = "create_buffer"
	if err := c.ready(op); err != nil {
		return err
	}
	if _, ok := c.buffers[name]; ok {
		return registryError(ErrDuplicate, op, name)
	}
	if data != nil && len(data) < size {
		return validationError(ErrInvalid, op, name).withDetail("%d bytes of host data for a %d byte buffer", len(data), size)
	}
	b, err := c.allocHost(op, name, size, data, access)
	if err != nil {
		return err
	}
	c.buffers[name] = b
	return nil
}

// CreateImageBuffer registers a memory object bound to surface. Kernel
// writes land in the surface without a copy through the host.
func (c *Caster) CreateImageBuffer(name string, surface device.Surface, access Access) error {
	const op = "create_image_buffer"
	if err := c.ready(op); err != nil {
		return err
	}
	if _, ok := c.buffers[name]; ok {
		return registryError(ErrDuplicate, op, name)
	}
	b, err := c.allocSurface(op, name, surface, access)
	if err != nil {
		return err
	}
	c.buffers[name] = b
	return nil
}

// ReleaseBuffer frees the named buffer and removes it from the registry.
// Argument slots bound to it become unbound.
func (c *Caster) ReleaseBuffer(name string) error {
	const op = "release_buffer"
	b, ok := c.buffers[name]
	if !ok {
		return registryError(ErrNotFound, op, name)
	}
	if err := c.handBack(); err != nil {
		return deviceError(op, name, err)
	}
	if err := b.mem.Release(); err != nil {
		return deviceError(op, name, err)
	}
	delete(c.buffers, name)
	if c.unbindAll(name) {
		c.invalidate()
	}
	c.log.Debug("buffer released", "name", name, "size", b.Size)
	return nil
}

// WriteBuffer copies data into the named buffer at offset.
func (c *Caster) WriteBuffer(name string, offset int, data []byte) error {
	b, ok := c.buffers[name]
	if !ok {
		return registryError(ErrNotFound, "write_buffer", name)
	}
	if err := c.queue.Write(b.mem, offset, data); err != nil {
		return deviceError("write_buffer", name, err)
	}
	return nil
}

// ReadBuffer copies len(dst) bytes of the named buffer at offset into dst.
func (c *Caster) ReadBuffer(name string, offset int, dst []byte) error {
	b, ok := c.buffers[name]
	if !ok {
		return registryError(ErrNotFound, "read_buffer", name)
	}
	if b.Backing == BackingSurface {
		pix := b.surface.Pixels()
		if offset < 0 || offset+len(dst) > len(pix) {
			return validationError(ErrInvalid, "read_buffer", name).withDetail("range [%d,%d) outside %d bytes", offset, offset+len(dst), len(pix))
		}
		copy(dst, pix[offset:])
		return nil
	}
	if err := c.queue.Read(b.mem, offset, dst); err != nil {
		return deviceError("read_buffer", name, err)
	}
	return nil
}

// Buffers lists the registered buffers by name.
func (c *Caster) Buffers() []BufferInfo {
	out := make([]BufferInfo, 0, len(c.buffers))
	for _, b := range c.buffers {
		out = append(out, BufferInfo{Name: b.Name, Size: b.Size, Access: b.Access, Backing: b.Backing})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Buffer returns the registered buffer called name.
func (c *Caster) Buffer(name string) (BufferInfo, bool) {
	b, ok := c.buffers[name]
	if !ok {
		return BufferInfo{}, false
	}
	return BufferInfo{Name: b.Name, Size: b.Size, Access: b.Access, Backing: b.Backing}, true
}

func (c *Caster) allocHost(op, name string, size int, data []byte, access Access) (*Buffer, error) {
	mem, err := c.ctx.CreateBuffer(access.flags(), size, data)
	if err != nil {
		return nil, deviceError(op, name, err)
	}
	c.log.Debug("buffer created", "name", name, "size", size, "access", access)
	return &Buffer{Name: name, Size: size, Access: access, Backing: BackingHost, mem: mem}, nil
}

func (c *Caster) allocSurface(op, name string, surface device.Surface, access Access) (*Buffer, error) {
	if surface == nil {
		return nil, validationError(ErrInvalid, op, name).withDetail("nil surface")
	}
	mem, err := c.ctx.CreateFromSurface(access.flags(), surface)
	if err != nil {
		return nil, deviceError(op, name, err)
	}
	w, h := surface.Size()
	c.log.Debug("image buffer created", "name", name, "width", w, "height", h, "access", access)
	return &Buffer{Name: name, Size: mem.Size(), Access: access, Backing: BackingSurface, mem: mem, surface: surface}, nil
}

// hostUpdate is the new contents of one host buffer.
type hostUpdate struct {
	name string
	data []byte
}

// putHost registers every update or none of them. When each buffer already
// exists with the same size and access it is rewritten in place and the
// bindings stay valid. Otherwise all of them are allocated first and then
// swapped in together.
func (c *Caster) putHost(op string, access Access, ups ...hostUpdate) error {
	if c.rewritable(access, ups) {
		return c.rewrite(op, ups)
	}
	bufs, err := c.allocHostSet(op, access, ups)
	if err != nil {
		return err
	}
	c.swap(bufs...)
	return nil
}

func (c *Caster) rewritable(access Access, ups []hostUpdate) bool {
	for _, u := range ups {
		old, ok := c.buffers[u.name]
		if !ok || old.Backing != BackingHost || old.Size != len(u.data) || old.Access != access {
			return false
		}
	}
	return true
}

// rewrite writes ups in order. When one write fails the buffers already
// written get their old contents back.
func (c *Caster) rewrite(op string, ups []hostUpdate) error {
	prev := make([][]byte, 0, len(ups))
	for i, u := range ups {
		b := c.buffers[u.name]
		old := make([]byte, b.Size)
		err := c.queue.Read(b.mem, 0, old)
		if err == nil {
			err = c.queue.Write(b.mem, 0, u.data)
		}
		if err != nil {
			c.restore(ups[:i], prev)
			return deviceError(op, u.name, err)
		}
		prev = append(prev, old)
	}
	return nil
}

func (c *Caster) restore(ups []hostUpdate, prev [][]byte) {
	for i, u := range ups {
		if err := c.queue.Write(c.buffers[u.name].mem, 0, prev[i]); err != nil {
			c.log.Error("restore after failed write", "name", u.name, "err", err)
		}
	}
}

// allocHostSet allocates a new buffer per update. Nothing is registered; on
// failure the buffers allocated so far are released again.
func (c *Caster) allocHostSet(op string, access Access, ups []hostUpdate) ([]*Buffer, error) {
	bufs := make([]*Buffer, 0, len(ups))
	for _, u := range ups {
		b, err := c.allocHost(op, u.name, len(u.data), u.data, access)
		if err != nil {
			c.releaseBuffers(bufs)
			return nil, err
		}
		bufs = append(bufs, b)
	}
	return bufs, nil
}

// swap registers replacements, releasing whatever was registered under the
// same names and moving argument bindings over to the new memory. The new
// buffers must already be allocated, so a failed allocation never disturbs
// the registry.
func (c *Caster) swap(bufs ...*Buffer) {
	if err := c.handBack(); err != nil {
		c.log.Error("release of held shared objects failed", "err", err)
	}
	rebound := false
	for _, b := range bufs {
		old, ok := c.buffers[b.Name]
		c.buffers[b.Name] = b
		if !ok {
			continue
		}
		if c.rebindAll(b) {
			rebound = true
		}
		if err := old.mem.Release(); err != nil {
			c.log.Error("release of replaced buffer failed", "name", old.Name, "err", err)
		}
	}
	if rebound {
		c.invalidate()
	}
}

func (c *Caster) releaseBuffers(bufs []*Buffer) {
	for _, b := range bufs {
		if b == nil {
			continue
		}
		if err := b.mem.Release(); err != nil {
			c.log.Error("release of unregistered buffer failed", "name", b.Name, "err", err)
		}
	}
}

func encodeFloats(vs ...float32) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], math32.Float32bits(v))
	}
	return out
}

func encodeInts(vs ...int) []byte {
	out := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(int32(v)))
	}
	return out
}
