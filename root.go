package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"voxelcaster/internal/device"
	"voxelcaster/internal/device/host"
	"voxelcaster/internal/settings"
)

var logger *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "voxelcaster",
	Short: "Voxel raycaster running on OpenCL devices",
	Long: `voxelcaster renders a voxel map by dispatching one ray per pixel on a
compute device that shares its output surface with the display.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevelFlag, logFormatFlag, os.Stderr)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&driverFlag, "driver", host.DriverName, "compute driver ("+strings.Join(device.Drivers(), ", ")+")")
	flags.StringVar(&configFlag, "config", "", "settings file (default in the user config directory)")
	flags.StringVar(&logLevelFlag, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormatFlag, "log-format", "text", "Log format (text, json)")
}

func newLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// openSettings returns the settings store and its current contents. A
// missing file yields empty settings.
func openSettings() (*settings.FileStore, *settings.Settings, error) {
	path := configFlag
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	store := settings.NewFileStore(path)
	st, err := store.Load()
	if errors.Is(err, settings.ErrNotFound) {
		return store, &settings.Settings{}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return store, st, nil
}

func currentLogger() *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
