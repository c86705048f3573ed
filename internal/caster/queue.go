package caster

import "voxelcaster/internal/device"

// createCommandQueue creates the single in-order queue every buffer upload,
// interop handoff and dispatch of the caster goes through.
func createCommandQueue(ctx device.Context) (device.Queue, error) {
	q, err := ctx.CreateQueue()
	if err != nil {
		return nil, deviceError("create_command_queue", ctx.Device().Name, err)
	}
	return q, nil
}
