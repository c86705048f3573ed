package device

import "strings"

// DeviceType describes the class of a compute device.
type DeviceType int

const (
	TypeUnknown DeviceType = iota
	TypeCPU
	TypeGPU
	TypeAccelerator
)

func (t DeviceType) String() string {
	switch t {
	case TypeCPU:
		return "CPU"
	case TypeGPU:
		return "GPU"
	case TypeAccelerator:
		return "Accelerator"
	default:
		return "Unknown"
	}
}

// IsAccelerator reports whether the device is a dedicated compute processor
// rather than a general-purpose CPU.
func (t DeviceType) IsAccelerator() bool {
	return t == TypeGPU || t == TypeAccelerator
}

// ParseDeviceType is the inverse of DeviceType.String.
func ParseDeviceType(s string) DeviceType {
	switch strings.ToLower(s) {
	case "cpu":
		return TypeCPU
	case "gpu":
		return TypeGPU
	case "accelerator":
		return TypeAccelerator
	default:
		return TypeUnknown
	}
}

// Memory-sharing extensions. A device advertising neither cannot share
// memory with a rendering context.
const (
	ExtGLSharing      = "cl_khr_gl_sharing"
	ExtAppleGLSharing = "cl_APPLE_gl_sharing"
)

type PlatformID int
type DeviceID int

// Capabilities is the capability record queried from a device.
type Capabilities struct {
	GlobalMemSize    uint64
	LocalMemSize     uint64
	MaxMemAllocSize  uint64
	MaxWorkGroupSize int
	AddressBits      int
	ComputeUnits     int
	ClockMHz         int
	LittleEndian     bool
	Extensions       []string
	Interop          bool
}

// HasExtension reports whether name is in the extension list.
func (c Capabilities) HasExtension(name string) bool {
	for _, ext := range c.Extensions {
		if ext == name {
			return true
		}
	}
	return false
}

// SupportsSharing reports whether any memory-sharing extension is present.
func SupportsSharing(extensions []string) bool {
	for _, ext := range extensions {
		if ext == ExtGLSharing || ext == ExtAppleGLSharing {
			return true
		}
	}
	return false
}

// SplitExtensions turns a space separated extension string into a list.
func SplitExtensions(s string) []string {
	return strings.Fields(s)
}

// DeviceInfo is the immutable descriptor of one device.
type DeviceInfo struct {
	Platform     PlatformID
	PlatformName string
	ID           DeviceID
	Name         string
	Vendor       string
	Version      string
	Type         DeviceType
	Caps         Capabilities
}

// Platform groups the devices exposed by one vendor runtime.
type Platform struct {
	ID      PlatformID
	Name    string
	Vendor  string
	Version string
	Devices []DeviceInfo
}

// MemFlags share their bit values with cl_mem_flags.
type MemFlags uint64

const (
	MemReadWrite MemFlags = 1 << 0
	MemWriteOnly MemFlags = 1 << 1
	MemReadOnly  MemFlags = 1 << 2
)

// Readable reports whether kernels may read memory created with f.
func (f MemFlags) Readable() bool { return f&MemWriteOnly == 0 }

// Writable reports whether kernels may write memory created with f.
func (f MemFlags) Writable() bool { return f&MemReadOnly == 0 }

// Sharing selects how a context shares memory with the rendering subsystem.
type Sharing int

const (
	SharingNone Sharing = iota
	// SharingHostMirror shares through host-visible pixel memory owned by
	// the display backend.
	SharingHostMirror
	// SharingGL binds directly to a GL context named in Properties.Handles.
	SharingGL
)

func (s Sharing) String() string {
	switch s {
	case SharingHostMirror:
		return "host-mirror"
	case SharingGL:
		return "gl"
	default:
		return "none"
	}
}

// Properties are the context creation properties an interop descriptor
// supplies for the active rendering context.
type Properties struct {
	Platform PlatformID
	Sharing  Sharing
	Backend  string
	Handles  map[string]uintptr
}
