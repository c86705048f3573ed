package host

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"voxelcaster/internal/device"
)

// queue executes commands synchronously in submission order, so Finish only
// has to report faults.
type queue struct {
	ctx      *hostContext
	released bool
}

func (q *queue) check(op string) error {
	if q.released {
		return device.Errorf(op, device.StatusInvalidCommandQueue, "queue released")
	}
	return q.ctx.check(op)
}

func (q *queue) AcquireShared(objs []device.Memory) error {
	const op = "clEnqueueAcquireGLObjects"
	if err := q.check(op); err != nil {
		return err
	}
	if err := q.ctx.driver.fault("acquire"); err != nil {
		return err
	}
	mems := make([]*memory, 0, len(objs))
	for _, o := range objs {
		mem, err := asMemory(op, q.ctx, o)
		if err != nil {
			return err
		}
		if !mem.Shared() {
			return device.Errorf(op, device.StatusInvalidGLObject, "object is not surface-backed")
		}
		if mem.acquired {
			return device.Errorf(op, device.StatusInvalidOperation, "object already acquired")
		}
		mems = append(mems, mem)
	}
	for _, mem := range mems {
		mem.acquired = true
	}
	return nil
}

func (q *queue) ReleaseShared(objs []device.Memory) error {
	const op = "clEnqueueReleaseGLObjects"
	if err := q.check(op); err != nil {
		return err
	}
	if err := q.ctx.driver.fault("release"); err != nil {
		return err
	}
	mems := make([]*memory, 0, len(objs))
	for _, o := range objs {
		mem, err := asMemory(op, q.ctx, o)
		if err != nil {
			return err
		}
		if !mem.acquired {
			return device.Errorf(op, device.StatusInvalidOperation, "object was not acquired")
		}
		mems = append(mems, mem)
	}
	for _, mem := range mems {
		mem.acquired = false
	}
	return nil
}

// Dispatch2D splits the domain into row bands, one per worker, the same way
// a device schedules work-groups across compute units.
func (q *queue) Dispatch2D(k device.Kernel, width, height int) error {
	const op = "clEnqueueNDRangeKernel"
	if err := q.check(op); err != nil {
		return err
	}
	q.ctx.driver.countDispatch()
	if err := q.ctx.driver.fault("dispatch"); err != nil {
		return err
	}
	kern, ok := k.(*kernel)
	if !ok || kern.released || kern.prog.ctx != q.ctx {
		return device.Errorf(op, device.StatusInvalidKernel, "not a live kernel of this context")
	}
	if width <= 0 || height <= 0 {
		return device.Errorf(op, device.StatusInvalidGlobalWorkSize, "%dx%d", width, height)
	}
	args := make([][]byte, len(kern.args))
	for i, mem := range kern.args {
		if mem == nil || mem.released {
			return device.Errorf(op, device.StatusInvalidKernelArgs, "argument %d of %s is not set", i, kern.sig.name)
		}
		if mem.Shared() && !mem.acquired {
			return device.Errorf(op, device.StatusInvalidGLObject, "argument %d of %s is shared and not acquired", i, kern.sig.name)
		}
		args[i] = mem.data
	}
	invoke, err := kern.entry.Prepare(args, width, height)
	if err != nil {
		return device.Errorf(op, device.StatusInvalidKernelArgs, "%s: %v", kern.sig.name, err)
	}

	workers := q.ctx.driver.workers
	if workers < 1 {
		workers = 1
	}
	rowsPer := (height + workers - 1) / workers
	var g errgroup.Group
	for y0 := 0; y0 < height; y0 += rowsPer {
		y0 := y0
		y1 := y0 + rowsPer
		if y1 > height {
			y1 = height
		}
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = device.Errorf(op, device.StatusOutOfResources, "%s faulted: %v", kern.sig.name, r)
				}
			}()
			for y := y0; y < y1; y++ {
				for x := 0; x < width; x++ {
					invoke(x, y)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (q *queue) Write(m device.Memory, offset int, data []byte) error {
	const op = "clEnqueueWriteBuffer"
	if err := q.check(op); err != nil {
		return err
	}
	if err := q.ctx.driver.fault("write"); err != nil {
		return err
	}
	mem, err := asMemory(op, q.ctx, m)
	if err != nil {
		return err
	}
	if err := bounds(op, mem, offset, len(data)); err != nil {
		return err
	}
	copy(mem.data[offset:], data)
	return nil
}

func (q *queue) Read(m device.Memory, offset int, dst []byte) error {
	const op = "clEnqueueReadBuffer"
	if err := q.check(op); err != nil {
		return err
	}
	mem, err := asMemory(op, q.ctx, m)
	if err != nil {
		return err
	}
	if err := bounds(op, mem, offset, len(dst)); err != nil {
		return err
	}
	copy(dst, mem.data[offset:])
	return nil
}

func bounds(op string, mem *memory, offset, n int) error {
	if offset < 0 || offset+n > len(mem.data) {
		return &device.StatusError{
			Op:     op,
			Status: device.StatusInvalidValue,
			Detail: fmt.Sprintf("range [%d,%d) outside %d byte object", offset, offset+n, len(mem.data)),
		}
	}
	return nil
}

func (q *queue) Finish() error {
	if err := q.check("clFinish"); err != nil {
		return err
	}
	return q.ctx.driver.fault("finish")
}

func (q *queue) Release() error {
	if err := q.check("clReleaseCommandQueue"); err != nil {
		return err
	}
	q.released = true
	q.ctx.orphan(ResQueue)
	return nil
}
