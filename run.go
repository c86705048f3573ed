package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/spf13/cobra"

	"voxelcaster/internal/display/screen"
	"voxelcaster/internal/settings"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open a window and render interactively",
	Long: `Run opens a window and renders the generated map every tick.

Controls: WASD move, Q/E down/up, arrows look, F5 recompile the kernel,
[ and ] change the field of view, - and = change the resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, st, err := openSettings()
		if err != nil {
			return err
		}
		return runWindow(configFromFlags(st), store, currentLogger())
	},
}

func init() {
	addSceneFlags(runCmd)
	f := runCmd.Flags()
	f.BoolVar(&watchFlag, "watch", false, "recompile the kernel file when it changes (needs --kernel)")
	f.BoolVar(&debugFlag, "debug", false, "show FPS and device overlay")
	f.StringVar(&cpuProfileFlag, "cpuprofile", "", "orbit the map for 15s while writing a CPU profile here")
	f.BoolVar(&saveDeviceFlag, "save", true, "persist the selected device and kernel")
	rootCmd.AddCommand(runCmd)
}

// addSceneFlags registers the flags shared by run and snapshot.
func addSceneFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&kernelPathFlag, "kernel", "", "kernel source file (default embedded)")
	f.StringVar(&kernelNameFlag, "kernel-name", "", "kernel entry point (default raycaster)")
	f.StringVar(&atlasPathFlag, "atlas", "", "texture atlas image (default generated)")
	f.IntVar(&tileSizeFlag, "tile", atlasTileSize, "atlas tile size in pixels")
	f.Int64Var(&seedFlag, "seed", 0, "map seed (0 = random)")
	f.IntVar(&widthFlag, "width", defaultWidth, "viewport width")
	f.IntVar(&heightFlag, "height", defaultHeight, "viewport height")
}

func runWindow(cfg sessionConfig, store *settings.FileStore, log *slog.Logger) error {
	if watchFlag && cfg.KernelPath == "" {
		return errors.New("--watch needs --kernel")
	}
	window := screen.NewWindow()
	sess, err := newSession(cfg, window, log)
	if err != nil {
		return fmt.Errorf("initialise caster: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Error("shutdown", "err", err)
		}
	}()

	if saveDeviceFlag && store != nil {
		sess.remember(cfg.Settings, cfg)
		if err := store.Save(cfg.Settings); err != nil {
			log.Warn("settings not saved", "path", store.Path(), "err", err)
		}
	}

	g := newGame(sess, window, log)
	if watchFlag {
		kw, err := newKernelWatcher(cfg.KernelPath, log)
		if err != nil {
			return fmt.Errorf("watch kernel: %w", err)
		}
		defer kw.Close()
		g.recompile = kw.Changed()
		log.Info("watching kernel", "path", cfg.KernelPath)
	}
	if cpuProfileFlag != "" {
		prof, err := startCPUProfile(cpuProfileFlag, sess.caster.Frames, log)
		if err != nil {
			return fmt.Errorf("cpu profile: %w", err)
		}
		defer prof.Stop()
		g.profile = prof
		g.enableAutoOrbit(autoOrbitDuration)
	}

	ebiten.SetWindowSize(g.screenW, g.screenH)
	ebiten.SetWindowTitle("voxelcaster - " + sess.caster.Device().Name)
	ebiten.SetTPS(defaultTPS)
	return ebiten.RunGame(g)
}
