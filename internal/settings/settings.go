// Package settings persists the device choice and kernel location between
// runs.
package settings

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/pelletier/go-toml/v2"

	"voxelcaster/internal/device"
)

// DefaultFile is the settings file name inside the user config directory.
const DefaultFile = "voxelcaster.toml"

// ErrNotFound is returned when no settings file exists yet.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing settings file.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Path != "" {
		return "settings not found: " + e.Path
	}
	return "settings not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// DeviceRecord describes the chosen device so a later run can tell whether
// the enumeration still refers to the same hardware.
type DeviceRecord struct {
	Platform     int      `toml:"platform"`
	PlatformName string   `toml:"platform_name"`
	Device       int      `toml:"device"`
	Name         string   `toml:"name"`
	Type         string   `toml:"type"`
	Version      string   `toml:"version"`
	ClockMHz     int      `toml:"clock_mhz"`
	ComputeUnits int      `toml:"compute_units"`
	Extensions   []string `toml:"extensions,omitempty"`
}

// RecordOf captures dev.
func RecordOf(dev device.DeviceInfo) DeviceRecord {
	return DeviceRecord{
		Platform:     int(dev.Platform),
		PlatformName: dev.PlatformName,
		Device:       int(dev.ID),
		Name:         dev.Name,
		Type:         dev.Type.String(),
		Version:      dev.Version,
		ClockMHz:     dev.Caps.ClockMHz,
		ComputeUnits: dev.Caps.ComputeUnits,
		Extensions:   slices.Clone(dev.Caps.Extensions),
	}
}

// Matches reports whether dev is the device the record was taken from.
// Clock speed is ignored since drivers report boost clocks inconsistently.
func (r DeviceRecord) Matches(dev device.DeviceInfo) bool {
	return r.Platform == int(dev.Platform) &&
		r.Device == int(dev.ID) &&
		r.Name == dev.Name &&
		r.PlatformName == dev.PlatformName &&
		device.ParseDeviceType(r.Type) == dev.Type &&
		r.ComputeUnits == dev.Caps.ComputeUnits
}

// Settings is the persisted state.
type Settings struct {
	Driver string `toml:"driver"`
	// Device is nil until a device has been chosen.
	Device *DeviceRecord `toml:"device,omitempty"`
	Kernel Kernel        `toml:"kernel"`
}

// Kernel names the kernel source file and entry point. An empty Path uses
// the embedded source.
type Kernel struct {
	Path string `toml:"path,omitempty"`
	Name string `toml:"name,omitempty"`
}

// Find returns the device in devs the record points at.
func (s *Settings) Find(devs []device.DeviceInfo) (device.DeviceInfo, bool) {
	if s.Device == nil {
		return device.DeviceInfo{}, false
	}
	for _, d := range devs {
		if s.Device.Matches(d) {
			return d, true
		}
	}
	return device.DeviceInfo{}, false
}

// FileStore reads and writes one TOML settings file.
type FileStore struct {
	path string
}

// NewFileStore returns a store for path. The parent directory is created on
// first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns DefaultFile inside the user config directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config directory: %w", err)
	}
	return filepath.Join(dir, "voxelcaster", DefaultFile), nil
}

func (fs *FileStore) Path() string { return fs.path }

// Load reads the settings file. A missing file returns ErrNotFound.
func (fs *FileStore) Load() (*Settings, error) {
	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{Path: fs.path}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", fs.path, err)
	}
	slog.Debug("Settings loaded", "path", fs.path)
	return &s, nil
}

// Save writes s atomically through a temp file and rename.
func (fs *FileStore) Save(s *Settings) error {
	if s == nil {
		return fmt.Errorf("settings cannot be nil")
	}
	if err := os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize settings: %w", err)
	}

	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp settings file: %w", err)
	}
	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename settings file: %w", err)
	}
	slog.Debug("Settings saved", "path", fs.path)
	return nil
}
