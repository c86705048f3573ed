package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voxelcaster/internal/device"
	"voxelcaster/internal/device/opencl"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "voxelcaster version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "drivers: %s (opencl compiled in: %t)\n", strings.Join(device.Drivers(), ", "), opencl.Enabled)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
