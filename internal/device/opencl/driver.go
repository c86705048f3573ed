//go:build opencl

// Package opencl adapts github.com/jgillich/go-opencl to the device API.
//
// The binding creates contexts from a device list only, so GL context
// properties cannot be passed through. Surface-backed memory is therefore a
// device buffer mirrored to the surface pixels: acquiring uploads readable
// surfaces and releasing reads writable ones back, both blocking.
package opencl

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"

	"voxelcaster/internal/device"
)

// Enabled reports whether the OpenCL driver is compiled in.
const Enabled = true

// DriverName is the registry key of the OpenCL driver.
const DriverName = "opencl"

func init() {
	device.Register(&Driver{})
}

// Driver enumerates OpenCL platforms through the ICD loader.
type Driver struct {
	devices map[[2]int]*cl.Device
}

func (d *Driver) Name() string { return DriverName }

func (d *Driver) Platforms() ([]device.Platform, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		se := translate("clGetPlatformIDs", err)
		if se.Status == device.StatusPlatformNotFound || strings.Contains(err.Error(), "-1001") {
			se.Status = device.StatusPlatformNotFound
			se.Detail = "no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, se
	}
	if len(platforms) == 0 {
		return nil, device.Errorf("clGetPlatformIDs", device.StatusPlatformNotFound, "no OpenCL platforms available")
	}
	d.devices = make(map[[2]int]*cl.Device)
	out := make([]device.Platform, 0, len(platforms))
	for pi, p := range platforms {
		plat := device.Platform{
			ID:      device.PlatformID(pi),
			Name:    p.Name(),
			Vendor:  p.Vendor(),
			Version: p.Version(),
		}
		devices, derr := p.GetDevices(cl.DeviceTypeAll)
		if derr != nil && derr != cl.ErrDeviceNotFound {
			out = append(out, plat)
			continue
		}
		for di, dev := range devices {
			d.devices[[2]int{pi, di}] = dev
			plat.Devices = append(plat.Devices, describe(plat, di, dev))
		}
		out = append(out, plat)
	}
	return out, nil
}

func describe(plat device.Platform, id int, dev *cl.Device) device.DeviceInfo {
	exts := device.SplitExtensions(dev.Extensions())
	return device.DeviceInfo{
		Platform:     plat.ID,
		PlatformName: plat.Name,
		ID:           device.DeviceID(id),
		Name:         dev.Name(),
		Vendor:       dev.Vendor(),
		Version:      dev.Version(),
		Type:         mapDeviceType(dev.Type()),
		Caps: device.Capabilities{
			GlobalMemSize:    uint64(dev.GlobalMemSize()),
			LocalMemSize:     uint64(dev.LocalMemSize()),
			MaxMemAllocSize:  uint64(dev.MaxMemAllocSize()),
			MaxWorkGroupSize: dev.MaxWorkGroupSize(),
			AddressBits:      dev.AddressBits(),
			ComputeUnits:     dev.MaxComputeUnits(),
			ClockMHz:         dev.MaxClockFrequency(),
			LittleEndian:     dev.EndianLittle(),
			Extensions:       exts,
			Interop:          device.SupportsSharing(exts),
		},
	}
}

func mapDeviceType(t cl.DeviceType) device.DeviceType {
	switch {
	case t&cl.DeviceTypeGPU != 0:
		return device.TypeGPU
	case t&cl.DeviceTypeAccelerator != 0:
		return device.TypeAccelerator
	case t&cl.DeviceTypeCPU != 0:
		return device.TypeCPU
	default:
		return device.TypeUnknown
	}
}

func (d *Driver) CreateContext(info device.DeviceInfo, props device.Properties) (device.Context, error) {
	dev, ok := d.devices[[2]int{int(info.Platform), int(info.ID)}]
	if !ok {
		return nil, device.Errorf("clCreateContext", device.StatusInvalidDevice, "device %d on platform %d was not enumerated", info.ID, info.Platform)
	}
	if props.Platform != info.Platform {
		return nil, device.Errorf("clCreateContext", device.StatusInvalidPlatform, "properties name platform %d, device is on %d", props.Platform, info.Platform)
	}
	switch props.Sharing {
	case device.SharingGL:
		return nil, device.Errorf("clCreateContext", device.StatusInvalidGLSharegroupReference, "GL context properties are not exposed by the go-opencl binding")
	case device.SharingHostMirror:
		if !info.Caps.Interop {
			return nil, device.Errorf("clCreateContext", device.StatusInvalidGLSharegroupReference, "%s does not advertise %s", info.Name, device.ExtGLSharing)
		}
	}
	ctx, err := cl.CreateContext([]*cl.Device{dev})
	if err != nil {
		return nil, translate("clCreateContext", err)
	}
	return &clContext{ctx: ctx, dev: dev, info: info}, nil
}

type clContext struct {
	ctx  *cl.Context
	dev  *cl.Device
	info device.DeviceInfo
}

func (c *clContext) Device() device.DeviceInfo { return c.info }

func (c *clContext) CreateQueue() (device.Queue, error) {
	q, err := c.ctx.CreateCommandQueue(c.dev, 0)
	if err != nil {
		return nil, translate("clCreateCommandQueue", err)
	}
	return &clQueue{q: q}, nil
}

func (c *clContext) CreateBuffer(flags device.MemFlags, size int, data []byte) (device.Memory, error) {
	if data != nil && len(data) < size {
		return nil, device.Errorf("clCreateBuffer", device.StatusInvalidHostPtr, "host data holds %d of %d bytes", len(data), size)
	}
	var (
		mem *cl.MemObject
		err error
	)
	if data != nil {
		mem, err = c.ctx.CreateBufferUnsafe(cl.MemFlag(flags)|cl.MemCopyHostPtr, size, unsafe.Pointer(&data[0]))
	} else {
		mem, err = c.ctx.CreateEmptyBuffer(cl.MemFlag(flags), size)
	}
	if err != nil {
		return nil, translate("clCreateBuffer", err)
	}
	return &clMemory{mem: mem, size: size, flags: flags}, nil
}

func (c *clContext) CreateFromSurface(flags device.MemFlags, s device.Surface) (device.Memory, error) {
	if s == nil {
		return nil, device.Errorf("clCreateFromGLTexture", device.StatusInvalidGLObject, "nil surface")
	}
	w, h := s.Size()
	size := w * h * 4
	if w <= 0 || h <= 0 || len(s.Pixels()) != size {
		return nil, device.Errorf("clCreateFromGLTexture", device.StatusInvalidImageSize, "%dx%d surface", w, h)
	}
	mem, err := c.ctx.CreateEmptyBuffer(cl.MemFlag(flags), size)
	if err != nil {
		return nil, translate("clCreateFromGLTexture", err)
	}
	return &clMemory{mem: mem, size: size, flags: flags, surface: s}, nil
}

func (c *clContext) BuildProgram(source string) (device.Program, error) {
	program, err := c.ctx.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, translate("clCreateProgramWithSource", err)
	}
	if err := program.BuildProgram([]*cl.Device{c.dev}, ""); err != nil {
		program.Release()
		return nil, translate("clBuildProgram", err)
	}
	return &clProgram{p: program}, nil
}

func (c *clContext) Release() error {
	c.ctx.Release()
	return nil
}

type clMemory struct {
	mem     *cl.MemObject
	size    int
	flags   device.MemFlags
	surface device.Surface
}

func (m *clMemory) Size() int              { return m.size }
func (m *clMemory) Flags() device.MemFlags { return m.flags }
func (m *clMemory) Shared() bool           { return m.surface != nil }

func (m *clMemory) Release() error {
	m.mem.Release()
	return nil
}

type clProgram struct {
	p *cl.Program
}

func (p *clProgram) CreateKernel(name string) (device.Kernel, error) {
	k, err := p.p.CreateKernel(name)
	if err != nil {
		return nil, translate("clCreateKernel", err)
	}
	n, err := k.NumArgs()
	if err != nil {
		k.Release()
		return nil, translate("clGetKernelInfo", err)
	}
	return &clKernel{k: k, name: name, args: n}, nil
}

// BuildLog is empty for successful builds; failures carry the log in the
// returned error.
func (p *clProgram) BuildLog() string { return "" }

func (p *clProgram) Release() error {
	p.p.Release()
	return nil
}

type clKernel struct {
	k    *cl.Kernel
	name string
	args int
}

func (k *clKernel) Name() string { return k.name }
func (k *clKernel) NumArgs() int { return k.args }

func (k *clKernel) SetArg(index int, m device.Memory) error {
	mem, ok := m.(*clMemory)
	if !ok {
		return device.Errorf("clSetKernelArg", device.StatusInvalidMemObject, "foreign memory object")
	}
	if err := k.k.SetArgBuffer(index, mem.mem); err != nil {
		return translate("clSetKernelArg", err)
	}
	return nil
}

func (k *clKernel) Release() error {
	k.k.Release()
	return nil
}

type clQueue struct {
	q *cl.CommandQueue
}

func (q *clQueue) AcquireShared(objs []device.Memory) error {
	for _, o := range objs {
		mem, err := mirrored("clEnqueueAcquireGLObjects", o)
		if err != nil {
			return err
		}
		if !mem.flags.Readable() {
			continue
		}
		pix := mem.surface.Pixels()
		if _, err := q.q.EnqueueWriteBuffer(mem.mem, true, 0, mem.size, unsafe.Pointer(&pix[0]), nil); err != nil {
			return translate("clEnqueueAcquireGLObjects", err)
		}
	}
	return nil
}

func (q *clQueue) ReleaseShared(objs []device.Memory) error {
	for _, o := range objs {
		mem, err := mirrored("clEnqueueReleaseGLObjects", o)
		if err != nil {
			return err
		}
		if !mem.flags.Writable() {
			continue
		}
		pix := mem.surface.Pixels()
		if _, err := q.q.EnqueueReadBuffer(mem.mem, true, 0, mem.size, unsafe.Pointer(&pix[0]), nil); err != nil {
			return translate("clEnqueueReleaseGLObjects", err)
		}
	}
	return nil
}

func mirrored(op string, m device.Memory) (*clMemory, error) {
	mem, ok := m.(*clMemory)
	if !ok || mem.surface == nil {
		return nil, device.Errorf(op, device.StatusInvalidGLObject, "object is not surface-backed")
	}
	return mem, nil
}

func (q *clQueue) Dispatch2D(k device.Kernel, width, height int) error {
	kern, ok := k.(*clKernel)
	if !ok {
		return device.Errorf("clEnqueueNDRangeKernel", device.StatusInvalidKernel, "foreign kernel")
	}
	if _, err := q.q.EnqueueNDRangeKernel(kern.k, nil, []int{width, height}, nil, nil); err != nil {
		return translate("clEnqueueNDRangeKernel", err)
	}
	return nil
}

func (q *clQueue) Write(m device.Memory, offset int, data []byte) error {
	mem, ok := m.(*clMemory)
	if !ok {
		return device.Errorf("clEnqueueWriteBuffer", device.StatusInvalidMemObject, "foreign memory object")
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := q.q.EnqueueWriteBuffer(mem.mem, true, offset, len(data), unsafe.Pointer(&data[0]), nil); err != nil {
		return translate("clEnqueueWriteBuffer", err)
	}
	return nil
}

func (q *clQueue) Read(m device.Memory, offset int, dst []byte) error {
	mem, ok := m.(*clMemory)
	if !ok {
		return device.Errorf("clEnqueueReadBuffer", device.StatusInvalidMemObject, "foreign memory object")
	}
	if len(dst) == 0 {
		return nil
	}
	if _, err := q.q.EnqueueReadBuffer(mem.mem, true, offset, len(dst), unsafe.Pointer(&dst[0]), nil); err != nil {
		return translate("clEnqueueReadBuffer", err)
	}
	return nil
}

func (q *clQueue) Finish() error {
	if err := q.q.Finish(); err != nil {
		return translate("clFinish", err)
	}
	return nil
}

func (q *clQueue) Release() error {
	q.q.Release()
	return nil
}

var knownErrors = map[error]device.Status{
	cl.ErrDeviceNotFound:             device.StatusDeviceNotFound,
	cl.ErrDeviceNotAvailable:         device.StatusDeviceNotAvailable,
	cl.ErrCompilerNotAvailable:       device.StatusCompilerNotAvailable,
	cl.ErrMemObjectAllocationFailure: device.StatusMemObjectAllocationFailure,
	cl.ErrOutOfResources:             device.StatusOutOfResources,
	cl.ErrOutOfHostMemory:            device.StatusOutOfHostMemory,
	cl.ErrInvalidValue:               device.StatusInvalidValue,
	cl.ErrInvalidContext:             device.StatusInvalidContext,
	cl.ErrInvalidMemObject:           device.StatusInvalidMemObject,
	cl.ErrInvalidKernelArgs:          device.StatusInvalidKernelArgs,
	cl.ErrInvalidWorkGroupSize:       device.StatusInvalidWorkGroupSize,
	cl.ErrInvalidOperation:           device.StatusInvalidOperation,
}

// translate maps binding errors onto device statuses, keeping the build log
// of failed compilations.
func translate(op string, err error) *device.StatusError {
	var buildErr cl.BuildError
	if errors.As(err, &buildErr) {
		return &device.StatusError{Op: op, Status: device.StatusBuildProgramFailure, Log: string(buildErr)}
	}
	var other cl.ErrOther
	if errors.As(err, &other) {
		return &device.StatusError{Op: op, Status: device.Status(other)}
	}
	for known, status := range knownErrors {
		if errors.Is(err, known) {
			return &device.StatusError{Op: op, Status: status}
		}
	}
	return &device.StatusError{Op: op, Status: device.StatusUnknown, Detail: fmt.Sprint(err)}
}
