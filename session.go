package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/chewxy/math32"

	"voxelcaster/internal/caster"
	"voxelcaster/internal/device"
	"voxelcaster/internal/kernels"
	"voxelcaster/internal/scene"
	"voxelcaster/internal/settings"
)

// sessionConfig is everything a session needs besides the display backend.
type sessionConfig struct {
	Driver     string
	KernelPath string
	KernelName string
	AtlasPath  string
	TileSize   int
	Seed       int64
	Width      int
	Height     int
	Settings   *settings.Settings
}

// configFromFlags merges the command line over the persisted settings.
func configFromFlags(st *settings.Settings) sessionConfig {
	cfg := sessionConfig{
		Driver:     driverFlag,
		KernelPath: kernelPathFlag,
		KernelName: kernelNameFlag,
		AtlasPath:  atlasPathFlag,
		TileSize:   tileSizeFlag,
		Seed:       seedFlag,
		Width:      widthFlag,
		Height:     heightFlag,
		Settings:   st,
	}
	if st != nil {
		if cfg.KernelPath == "" {
			cfg.KernelPath = st.Kernel.Path
		}
		if cfg.KernelName == "" {
			cfg.KernelName = st.Kernel.Name
		}
	}
	if cfg.KernelName == "" {
		cfg.KernelName = kernels.Raycaster
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return cfg
}

// session is one caster with the scene bound to it.
type session struct {
	caster *caster.Caster
	world  *scene.Map
	camera *scene.Camera
	lights scene.Lights
	atlas  *scene.Atlas
	log    *slog.Logger
}

// newSession initialises a caster on interop and binds a generated scene
// to the raycaster layout.
func newSession(cfg sessionConfig, interop caster.InteropDescriptor, log *slog.Logger) (*session, error) {
	drv, err := device.Lookup(cfg.Driver)
	if err != nil {
		return nil, err
	}
	opts := caster.Options{
		Driver:     drv,
		Interop:    interop,
		Logger:     log,
		KernelName: cfg.KernelName,
		FillColor:  fillColor,
	}
	if cfg.KernelPath != "" {
		opts.KernelSource, opts.KernelIsPath = cfg.KernelPath, true
	} else {
		src, err := kernels.Source(cfg.KernelName)
		if err != nil {
			return nil, err
		}
		opts.KernelSource = src
	}
	if st := cfg.Settings; st != nil && st.Device != nil && st.Driver == cfg.Driver {
		opts.Preferred = st.Device
	}

	c, err := caster.New(opts)
	if err != nil {
		return nil, err
	}
	if err := c.Init(); err != nil {
		_ = c.Close()
		return nil, err
	}
	s := &session{caster: c, log: log}
	if err := s.bindScene(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) bindScene(cfg sessionConfig) error {
	if cfg.KernelName != kernels.Raycaster {
		return fmt.Errorf("kernel %q has no scene layout", cfg.KernelName)
	}
	world, err := scene.GenerateMap(mapX, mapY, mapZ, cfg.Seed, scene.DefaultGenerateOptions(mapX, mapY))
	if err != nil {
		return err
	}
	tile := cfg.TileSize
	if tile <= 0 {
		tile = atlasTileSize
	}
	var atlas *scene.Atlas
	if cfg.AtlasPath != "" {
		atlas, err = scene.LoadAtlas(cfg.AtlasPath, tile, tile)
	} else {
		atlas, err = scene.GenerateAtlas(atlasTiles, tile, cfg.Seed)
	}
	if err != nil {
		return err
	}

	s.world = world
	s.atlas = atlas
	s.lights = scene.DefaultLights(world)
	s.camera = scene.NewCamera(
		[3]float32{float32(mapX) / 2, float32(mapY) / 2, 3},
		[2]float32{scene.Horizon, math32.Pi / 4},
	)

	c := s.caster
	w, h := cfg.Width, cfg.Height
	if w <= 0 || h <= 0 {
		w, h = defaultWidth, defaultHeight
	}
	if err := c.CreateViewport(w, h, defaultVFov, defaultHFov); err != nil {
		return err
	}
	if err := c.AssignMap(world); err != nil {
		return err
	}
	if err := c.AssignCamera(s.camera); err != nil {
		return err
	}
	if err := c.AssignLights(s.lights); err != nil {
		return err
	}
	if err := c.CreateTextureAtlas(atlas); err != nil {
		return err
	}
	if err := c.BindLayout(cfg.KernelName, caster.RaycasterLayout()); err != nil {
		return err
	}
	return c.Validate()
}

// remember stores the selected device and kernel location in st.
func (s *session) remember(st *settings.Settings, cfg sessionConfig) {
	rec := settings.RecordOf(s.caster.Device())
	st.Driver = cfg.Driver
	st.Device = &rec
	st.Kernel = settings.Kernel{Path: cfg.KernelPath, Name: cfg.KernelName}
}

func (s *session) Close() error {
	return s.caster.Close()
}
