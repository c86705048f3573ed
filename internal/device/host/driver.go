// Package host implements a software compute driver. Kernels are Go entry
// points registered by name; dispatches run across host goroutines and
// interop memory aliases the surface pixels directly.
package host

import (
	"runtime"
	"sync"

	"voxelcaster/internal/device"
)

// DriverName is the registry key of the host driver.
const DriverName = "host"

// Resource identifies a class of driver object for the live counters.
type Resource int

const (
	ResContext Resource = iota
	ResQueue
	ResBuffer
	ResProgram
	ResKernel
	resCount
)

// Driver is the software driver. The zero value is not usable; use New or
// Default.
type Driver struct {
	mu         sync.Mutex
	platforms  []device.Platform
	live       [resCount]int
	dispatches int
	faults     map[string]fault
	workers    int
}

// fault is an injected failure. skip calls of the op succeed first.
type fault struct {
	status device.Status
	skip   int
}

func init() {
	device.Register(Default())
}

// New returns a driver exposing exactly the given platforms. Platform and
// device IDs are rewritten to their enumeration index.
func New(platforms ...device.Platform) *Driver {
	out := make([]device.Platform, len(platforms))
	for pi, p := range platforms {
		p.ID = device.PlatformID(pi)
		devices := make([]device.DeviceInfo, len(p.Devices))
		for di, dev := range p.Devices {
			dev.Platform = p.ID
			dev.PlatformName = p.Name
			dev.ID = device.DeviceID(di)
			dev.Caps.Interop = device.SupportsSharing(dev.Caps.Extensions)
			devices[di] = dev
		}
		p.Devices = devices
		out[pi] = p
	}
	return &Driver{
		platforms: out,
		faults:    make(map[string]fault),
		workers:   runtime.NumCPU(),
	}
}

// Default returns a driver with one platform holding one interop-capable CPU
// device sized after the host.
func Default() *Driver {
	return New(device.Platform{
		Name:    "Host Software Platform",
		Vendor:  "voxelcaster",
		Version: "OpenCL 1.2 host",
		Devices: []device.DeviceInfo{CPUDevice("Host CPU", true)},
	})
}

// CPUDevice describes a host CPU device, optionally advertising the
// memory-sharing extension.
func CPUDevice(name string, sharing bool) device.DeviceInfo {
	return hostDevice(name, device.TypeCPU, sharing)
}

// GPUDevice describes a simulated accelerator device.
func GPUDevice(name string, sharing bool) device.DeviceInfo {
	return hostDevice(name, device.TypeGPU, sharing)
}

func hostDevice(name string, typ device.DeviceType, sharing bool) device.DeviceInfo {
	exts := []string{"cl_khr_byte_addressable_store", "cl_khr_global_int32_base_atomics"}
	if sharing {
		exts = append(exts, device.ExtGLSharing)
	}
	return device.DeviceInfo{
		Name:    name,
		Vendor:  "voxelcaster",
		Version: "OpenCL 1.2 host",
		Type:    typ,
		Caps: device.Capabilities{
			GlobalMemSize:    1 << 32,
			LocalMemSize:     32 << 10,
			MaxMemAllocSize:  1 << 30,
			MaxWorkGroupSize: 1024,
			AddressBits:      64,
			ComputeUnits:     runtime.NumCPU(),
			ClockMHz:         1000,
			LittleEndian:     true,
			Extensions:       exts,
		},
	}
}

func (d *Driver) Name() string { return DriverName }

// Platforms returns a copy of the configured topology.
func (d *Driver) Platforms() ([]device.Platform, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.platforms) == 0 {
		return nil, device.Errorf("clGetPlatformIDs", device.StatusPlatformNotFound, "no platforms configured")
	}
	out := make([]device.Platform, len(d.platforms))
	for i, p := range d.platforms {
		p.Devices = append([]device.DeviceInfo(nil), p.Devices...)
		out[i] = p
	}
	return out, nil
}

// CreateContext validates dev against the topology and props against the
// device capabilities.
func (d *Driver) CreateContext(dev device.DeviceInfo, props device.Properties) (device.Context, error) {
	if err := d.fault("create_context"); err != nil {
		return nil, err
	}
	known, ok := d.lookup(dev.Platform, dev.ID)
	if !ok {
		return nil, device.Errorf("clCreateContext", device.StatusInvalidDevice, "device %d on platform %d", dev.ID, dev.Platform)
	}
	if props.Platform != known.Platform {
		return nil, device.Errorf("clCreateContext", device.StatusInvalidPlatform, "properties name platform %d, device is on %d", props.Platform, known.Platform)
	}
	if props.Sharing != device.SharingNone && !known.Caps.Interop {
		return nil, device.Errorf("clCreateContext", device.StatusInvalidGLSharegroupReference, "%s does not advertise %s", known.Name, device.ExtGLSharing)
	}
	d.track(ResContext, 1)
	return &hostContext{driver: d, dev: known, props: props}, nil
}

// Live returns the number of unreleased objects of kind r.
func (d *Driver) Live(r Resource) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live[r]
}

// Allocations returns the number of unreleased memory objects.
func (d *Driver) Allocations() int { return d.Live(ResBuffer) }

// Dispatches returns the number of dispatches submitted to any queue of the
// driver, including rejected ones.
func (d *Driver) Dispatches() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dispatches
}

// InjectFault makes the next call of op fail with status. Recognised ops are
// create_context, create_queue, create_buffer, build, acquire, dispatch,
// release, write and finish.
func (d *Driver) InjectFault(op string, status device.Status) {
	d.InjectFaultAfter(op, 0, status)
}

// InjectFaultAfter lets skip calls of op succeed and fails the one after.
func (d *Driver) InjectFaultAfter(op string, skip int, status device.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.faults[op] = fault{status: status, skip: skip}
}

func (d *Driver) fault(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.faults[op]
	if !ok {
		return nil
	}
	if f.skip > 0 {
		f.skip--
		d.faults[op] = f
		return nil
	}
	delete(d.faults, op)
	return device.Errorf(op, f.status, "injected fault")
}

func (d *Driver) countDispatch() {
	d.mu.Lock()
	d.dispatches++
	d.mu.Unlock()
}

func (d *Driver) track(r Resource, delta int) {
	d.mu.Lock()
	d.live[r] += delta
	d.mu.Unlock()
}

func (d *Driver) lookup(platform device.PlatformID, id device.DeviceID) (device.DeviceInfo, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if int(platform) < 0 || int(platform) >= len(d.platforms) {
		return device.DeviceInfo{}, false
	}
	devices := d.platforms[platform].Devices
	if int(id) < 0 || int(id) >= len(devices) {
		return device.DeviceInfo{}, false
	}
	return devices[id], true
}
