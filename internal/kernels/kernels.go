// Package kernels holds the compute kernel sources and the host
// implementations of their entry points.
package kernels

import (
	_ "embed"
	"fmt"
)

//go:embed raycaster.cl
var raycasterSource string

//go:embed passthrough.cl
var passthroughSource string

const (
	Raycaster   = "raycaster"
	Passthrough = "passthrough"
)

// Raycaster argument slots.
const (
	ArgMap = iota
	ArgMapDimensions
	ArgViewportResolution
	ArgViewportMatrix
	ArgCameraDirection
	ArgCameraPosition
	ArgLights
	ArgLightCount
	ArgImage
	ArgTextureAtlas
	ArgAtlasDimensions
	ArgTileDimensions
	raycasterArity
)

// Passthrough argument slots.
const (
	ArgInput = iota
	ArgOutput
	passthroughArity
)

// LightRecordSize is the byte size of one packed light.
const LightRecordSize = 48

// Source returns the embedded source that defines the named kernel.
func Source(name string) (string, error) {
	switch name {
	case Raycaster:
		return raycasterSource, nil
	case Passthrough:
		return passthroughSource, nil
	default:
		return "", fmt.Errorf("kernels: no embedded source for %q", name)
	}
}
