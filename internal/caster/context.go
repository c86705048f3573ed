package caster

import (
	"errors"

	"voxelcaster/internal/device"
)

// InteropDescriptor binds a compute context to one display backend. Each
// backend supplies its own; the caster never inspects which one it has.
type InteropDescriptor interface {
	Name() string
	// Properties returns the context properties that link a context on
	// platform to the backend's active rendering context.
	Properties(platform device.PlatformID) (device.Properties, error)
	// NewSurface allocates a rendering surface compute memory can bind to.
	NewSurface(width, height int) (device.Surface, error)
}

// DrawTarget receives finished viewport surfaces.
type DrawTarget interface {
	DrawSurface(s device.Surface) error
}

var sharingStatuses = []device.Status{
	device.StatusInvalidGLSharegroupReference,
	device.StatusInvalidGLObject,
}

func createSharedContext(drv device.Driver, dev device.DeviceInfo, interop InteropDescriptor) (device.Context, error) {
	const op = "create_shared_context"
	if !dev.Caps.Interop {
		return nil, newError(KindCapability, CodeSharingNotSupported, ErrSharingUnsupported, op, dev.Name, nil)
	}
	props, err := interop.Properties(dev.Platform)
	if err != nil {
		return nil, newError(KindCapability, CodeSharingNotSupported, ErrSharingUnsupported, op, dev.Name, err).
			withDetail("backend %s", interop.Name())
	}
	ctx, err := drv.CreateContext(dev, props)
	if err != nil {
		var se *device.StatusError
		if errors.As(err, &se) {
			for _, s := range sharingStatuses {
				if se.Status == s {
					return nil, newError(KindCapability, CodeSharingNotSupported, ErrSharingUnsupported, op, dev.Name, err).
						withDetail("backend %s", interop.Name())
				}
			}
		}
		return nil, deviceError(op, dev.Name, err)
	}
	return ctx, nil
}
