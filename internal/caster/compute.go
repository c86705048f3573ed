package caster

import (
	"voxelcaster/internal/device"
)

// Compute renders one frame: it uploads the camera, acquires the shared
// memory the active kernel uses, dispatches one work-item per viewport
// pixel, hands the memory back and waits for the queue to drain.
//
// A failure aborts only this frame. Surfaces the kernel writes get their
// previous contents back and the next call may succeed.
func (c *Caster) Compute() error {
	const op = "compute"
	if err := c.ready(op); err != nil {
		return err
	}
	k, ok := c.kernels[c.active]
	if !ok {
		return registryError(ErrNotFound, op, c.active).withDetail("active kernel")
	}
	if !c.Validated() {
		return validationError(ErrNotValidated, op, c.active).
			withDetail("bindings changed at generation %d, last validated at %d", c.generation, c.validatedGen)
	}
	if c.viewport == nil {
		return validationError(ErrInvalid, op, c.active).withDetail("no viewport")
	}

	if c.camera != nil {
		if err := c.uploadCamera(); err != nil {
			return executionError(op, err).withDetail("camera upload")
		}
	}

	shared := c.sharedBuffers(k)
	if err := c.handBack(); err != nil {
		return executionError(op, err).withDetail("release of previous frame")
	}
	c.saveFrame(shared)
	mems := make([]device.Memory, len(shared))
	for i, b := range shared {
		mems[i] = b.mem
	}
	if err := c.queue.AcquireShared(mems); err != nil {
		return executionError(op, err).withDetail("acquire")
	}
	c.held = mems
	if err := c.queue.Dispatch2D(k.kernel, c.viewport.Width, c.viewport.Height); err != nil {
		if rerr := c.handBack(); rerr != nil {
			c.log.Error("release after failed dispatch", "err", rerr)
		}
		c.restoreFrame(shared)
		return executionError(op, err).withDetail("dispatch %dx%d", c.viewport.Width, c.viewport.Height)
	}
	if err := c.handBack(); err != nil {
		c.restoreFrame(shared)
		return executionError(op, err).withDetail("release")
	}
	if err := c.queue.Finish(); err != nil {
		c.restoreFrame(shared)
		return executionError(op, err).withDetail("finish")
	}
	c.frames++
	return nil
}

// Frames returns the number of frames computed successfully.
func (c *Caster) Frames() uint64 { return c.frames }

func (c *Caster) sharedBuffers(k *Kernel) []*Buffer {
	var out []*Buffer
	seen := make(map[string]bool)
	for _, name := range k.slots {
		b, ok := c.buffers[name]
		if !ok || b.Backing != BackingSurface || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, b)
	}
	return out
}

// handBack releases the shared objects still held from an acquire. They
// stay held when the release fails, so the next frame or Close retries it.
func (c *Caster) handBack() error {
	if len(c.held) == 0 {
		return nil
	}
	if err := c.queue.ReleaseShared(c.held); err != nil {
		return err
	}
	c.held = nil
	return nil
}

// saveFrame copies the pixels of every surface the kernel may write, so a
// failed frame can put them back.
func (c *Caster) saveFrame(shared []*Buffer) {
	for _, b := range shared {
		if b.Access == ReadOnly {
			continue
		}
		pix := b.surface.Pixels()
		saved := c.saved[b.Name]
		if cap(saved) < len(pix) {
			saved = make([]byte, len(pix))
		}
		saved = saved[:len(pix)]
		copy(saved, pix)
		c.saved[b.Name] = saved
	}
}

func (c *Caster) restoreFrame(shared []*Buffer) {
	for _, b := range shared {
		saved, ok := c.saved[b.Name]
		if !ok || b.Access == ReadOnly {
			continue
		}
		pix := b.surface.Pixels()
		if len(pix) == len(saved) {
			copy(pix, saved)
		}
	}
}

func (c *Caster) uploadCamera() error {
	pos := c.camera.Position()
	dir := c.camera.Direction()
	if b, ok := c.buffers[BufCameraPosition]; ok {
		if err := c.queue.Write(b.mem, 0, encodeFloats(pos[0], pos[1], pos[2], 0)); err != nil {
			return err
		}
	}
	if b, ok := c.buffers[BufCameraDirection]; ok {
		if err := c.queue.Write(b.mem, 0, encodeFloats(dir[0], dir[1], 0, 0)); err != nil {
			return err
		}
	}
	return nil
}
