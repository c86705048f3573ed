package main

import (
	"image/color"
	"time"
)

// Rendering, scene and input constants. Viewport sizes are in kernel
// work-items; the window scales the frame up by windowScale.
const (
	defaultWidth, defaultHeight = 320, 200
	windowScale                 = 3
	defaultTPS                  = 60
	defaultVFov                 = 60
	defaultHFov                 = 80
	fovStep                     = 5
	minFov                      = 20
	maxFov                      = 150
	resolutionStep              = 32
	minWidth                    = 64
	maxWidth                    = 1280
	mapX, mapY, mapZ            = 64, 64, 16
	atlasTiles                  = 4
	atlasTileSize               = 16
	moveImpulse                 = 0.004
	lookSpeed                   = 0.03
	orbitSpeed                  = 0.01
	errorLogInterval            = 2 * time.Second
	autoOrbitDuration           = 15 * time.Second
)

// fillColor is what the viewport shows before the first frame lands.
var fillColor = color.RGBA{R: 24, G: 24, B: 32, A: 255}
