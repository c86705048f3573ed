//go:build !opencl

package opencl

// Enabled reports whether the OpenCL driver is compiled in.
const Enabled = false

// DriverName is the registry key the OpenCL driver uses when built with
// -tags opencl.
const DriverName = "opencl"
