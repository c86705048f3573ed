package main

// Command-line flags. Persistent flags are registered on the root command,
// the rest on the commands that use them.
var (
	// driverFlag names the compute driver: host or opencl.
	driverFlag string

	// configFlag overrides the settings file location.
	configFlag string

	logLevelFlag  string
	logFormatFlag string

	// kernelPathFlag loads the kernel from a file instead of the embedded
	// source. Required for --watch.
	kernelPathFlag string

	// kernelNameFlag selects the kernel entry point.
	kernelNameFlag string

	// atlasPathFlag loads the texture atlas from an image file.
	atlasPathFlag string

	// tileSizeFlag is the atlas tile edge in pixels.
	tileSizeFlag int

	// seedFlag seeds map generation. 0 picks a time based seed.
	seedFlag int64

	widthFlag  int
	heightFlag int

	// watchFlag recompiles the kernel whenever its file changes.
	watchFlag bool

	// debugFlag enables the FPS and device overlay.
	debugFlag bool

	// cpuProfileFlag writes a CPU profile while the camera orbits the map.
	cpuProfileFlag string

	// outFlag is where snapshot writes its PNG.
	outFlag string

	// scaleFlag enlarges the snapshot image.
	scaleFlag int

	// saveDeviceFlag persists the device and kernel run started with.
	saveDeviceFlag bool

	// devicesSaveFlag persists the device the devices command selects.
	devicesSaveFlag bool
)
