package main

import (
	"fmt"
	"image/png"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/image/draw"

	"voxelcaster/internal/display"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Render one frame headless and write it as PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, st, err := openSettings()
		if err != nil {
			return err
		}
		return snapshot(configFromFlags(st), outFlag, scaleFlag, currentLogger())
	},
}

func init() {
	addSceneFlags(snapshotCmd)
	f := snapshotCmd.Flags()
	f.StringVar(&outFlag, "out", "frame.png", "output PNG path")
	f.IntVar(&scaleFlag, "scale", 1, "integer upscale factor")
	rootCmd.AddCommand(snapshotCmd)
}

func snapshot(cfg sessionConfig, out string, scale int, log *slog.Logger) error {
	sess, err := newSession(cfg, display.Headless{}, log)
	if err != nil {
		return fmt.Errorf("initialise caster: %w", err)
	}
	defer sess.Close()

	if err := sess.caster.Compute(); err != nil {
		return err
	}
	vp := sess.caster.Viewport()
	target := &display.ImageTarget{Scaler: draw.NearestNeighbor}
	if scale > 1 {
		target.Width, target.Height = vp.Width*scale, vp.Height*scale
	}
	if err := sess.caster.Draw(target); err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, target.Image); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info("snapshot written", "path", out, "width", target.Image.Rect.Dx(), "height", target.Image.Rect.Dy())
	return nil
}
