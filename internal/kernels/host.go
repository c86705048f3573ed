package kernels

import (
	"fmt"

	"voxelcaster/internal/device/host"
)

func init() {
	host.RegisterEntry(Raycaster, host.Entry{Arity: raycasterArity, Prepare: prepareRaycast})
	host.RegisterEntry(Passthrough, host.Entry{Arity: passthroughArity, Prepare: preparePassthrough})
}

func preparePassthrough(args [][]byte, width, height int) (host.Invocation, error) {
	in, out := args[ArgInput], args[ArgOutput]
	need := width * height * 4
	if len(in) < need || len(out) < need {
		return nil, fmt.Errorf("passthrough: %dx%d domain needs %d bytes, have input %d output %d", width, height, need, len(in), len(out))
	}
	return func(x, y int) {
		i := (x + width*y) * 4
		copy(out[i:i+4], in[i:i+4])
	}, nil
}
