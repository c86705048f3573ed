package main

import (
	"os"

	_ "voxelcaster/internal/device/host"
	_ "voxelcaster/internal/device/opencl"
	_ "voxelcaster/internal/kernels"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
