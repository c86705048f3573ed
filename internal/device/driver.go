// Package device defines the driver-neutral compute API the caster manages:
// platforms and devices, one context per manager, an in-order queue, memory
// objects, programs and kernels.
//
// Drivers register themselves from init. Every failure a driver reports is a
// *StatusError carrying an OpenCL-compatible status code.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Driver enumerates devices and creates contexts on them.
type Driver interface {
	// Name returns the registry key of the driver.
	Name() string

	// Platforms lists every platform and the devices it exposes.
	Platforms() ([]Platform, error)

	// CreateContext builds a context on dev. props come from the interop
	// descriptor of the active display backend.
	CreateContext(dev DeviceInfo, props Properties) (Context, error)
}

// Context owns every object created through it. Releasing a context with
// live children is an error.
type Context interface {
	Device() DeviceInfo
	CreateQueue() (Queue, error)
	CreateBuffer(flags MemFlags, size int, data []byte) (Memory, error)
	// CreateFromSurface creates a memory object backed by a rendering
	// surface instead of host memory.
	CreateFromSurface(flags MemFlags, s Surface) (Memory, error)
	// BuildProgram compiles source for the context device. A failed build
	// returns a *StatusError whose Log holds the compiler output.
	BuildProgram(source string) (Program, error)
	Release() error
}

// Program is a built program.
type Program interface {
	CreateKernel(name string) (Kernel, error)
	BuildLog() string
	Release() error
}

// Kernel is one entry point of a program.
type Kernel interface {
	Name() string
	NumArgs() int
	SetArg(index int, m Memory) error
	Release() error
}

// Memory is a device allocation.
type Memory interface {
	Size() int
	Flags() MemFlags
	// Shared reports whether the object is bound to a rendering surface and
	// must be acquired before kernels touch it.
	Shared() bool
	Release() error
}

// Queue is a strictly in-order command queue.
type Queue interface {
	AcquireShared(objs []Memory) error
	ReleaseShared(objs []Memory) error
	// Dispatch2D runs k over a width x height domain, one work-item per cell.
	Dispatch2D(k Kernel, width, height int) error
	Write(m Memory, offset int, data []byte) error
	Read(m Memory, offset int, dst []byte) error
	// Finish blocks until every queued command completed.
	Finish() error
	Release() error
}

// Surface is a rendering surface with RGBA8 host-visible pixels.
type Surface interface {
	Size() (width, height int)
	Pixels() []byte
}

// ErrUnknownDriver is returned by Lookup for unregistered names.
var ErrUnknownDriver = errors.New("device: unknown driver")

var (
	mu      sync.Mutex
	drivers = make(map[string]Driver)
)

// Register makes drv available by name. Registering the same name twice
// replaces the earlier driver.
func Register(drv Driver) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := drivers[drv.Name()]; ok {
		slog.Warn("driver replaced", "driver", drv.Name())
	}
	drivers[drv.Name()] = drv
}

// Lookup returns the registered driver called name.
func Lookup(name string) (Driver, error) {
	mu.Lock()
	defer mu.Unlock()
	drv, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
	return drv, nil
}

// Drivers returns the registered driver names in sorted order.
func Drivers() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
