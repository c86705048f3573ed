package caster

import (
	"log/slog"

	"voxelcaster/internal/device"
)

// DeviceMatcher recognises a previously chosen device in a fresh
// enumeration.
type DeviceMatcher interface {
	Matches(dev device.DeviceInfo) bool
}

// DeviceRegistry enumerates the devices of one driver and picks the one the
// caster runs on.
type DeviceRegistry struct {
	driver    device.Driver
	log       *slog.Logger
	platforms []device.Platform
}

func NewDeviceRegistry(drv device.Driver, log *slog.Logger) *DeviceRegistry {
	if log == nil {
		log = slog.Default()
	}
	return &DeviceRegistry{driver: drv, log: log}
}

// Enumerate lists every platform and device of the driver. A driver that
// reports no platforms is a capability failure.
func (r *DeviceRegistry) Enumerate() ([]device.Platform, error) {
	platforms, err := r.driver.Platforms()
	if err != nil {
		return nil, newError(KindCapability, CodeOpenCLNotSupported, ErrNoDevice, "enumerate", r.driver.Name(), err)
	}
	r.platforms = platforms
	for _, p := range platforms {
		for _, d := range p.Devices {
			r.log.Debug("device found",
				"platform", p.Name,
				"device", d.Name,
				"type", d.Type,
				"interop", d.Caps.Interop,
				"global_mem", d.Caps.GlobalMemSize,
				"max_work_group", d.Caps.MaxWorkGroupSize)
		}
	}
	return platforms, nil
}

// Devices returns every enumerated device in enumeration order.
func (r *DeviceRegistry) Devices() []device.DeviceInfo {
	var out []device.DeviceInfo
	for _, p := range r.platforms {
		out = append(out, p.Devices...)
	}
	return out
}

// Select returns the preferred device if it is still present and can share
// memory, otherwise the first interop-capable accelerator, otherwise the
// first interop-capable CPU. Devices without a sharing extension are never
// selected.
func (r *DeviceRegistry) Select(preferred DeviceMatcher) (device.DeviceInfo, error) {
	if r.platforms == nil {
		if _, err := r.Enumerate(); err != nil {
			return device.DeviceInfo{}, err
		}
	}
	devices := r.Devices()

	if preferred != nil {
		for _, d := range devices {
			if preferred.Matches(d) && d.Caps.Interop {
				return d, nil
			}
		}
		r.log.Warn("preferred device unavailable, selecting again", "preferred", preferred)
	}

	var fallback *device.DeviceInfo
	for i, d := range devices {
		if !d.Caps.Interop {
			continue
		}
		if d.Type.IsAccelerator() {
			return d, nil
		}
		if fallback == nil && d.Type == device.TypeCPU {
			fallback = &devices[i]
		}
	}
	if fallback != nil {
		r.log.Info("no interop-capable accelerator, falling back to CPU device", "device", fallback.Name)
		return *fallback, nil
	}
	return device.DeviceInfo{}, newError(KindCapability, CodeOpenCLNotSupported, ErrNoDevice, "select", r.driver.Name(), nil).
		withDetail("%d devices enumerated, none advertises %s", len(devices), device.ExtGLSharing)
}
