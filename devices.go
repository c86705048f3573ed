package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"voxelcaster/internal/caster"
	"voxelcaster/internal/device"
	"voxelcaster/internal/settings"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List compute devices and the one that would be selected",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, st, err := openSettings()
		if err != nil {
			return err
		}
		drv, err := device.Lookup(driverFlag)
		if err != nil {
			return err
		}
		if !devicesSaveFlag {
			store = nil
		}
		return listDevices(cmd.OutOrStdout(), drv, st, store, currentLogger())
	},
}

func init() {
	devicesCmd.Flags().BoolVar(&devicesSaveFlag, "save", false, "persist the selected device")
	rootCmd.AddCommand(devicesCmd)
}

// listDevices prints every device's capability record, marking the one
// selection would pick. With a store, the pick is saved.
func listDevices(w io.Writer, drv device.Driver, st *settings.Settings, store *settings.FileStore, log *slog.Logger) error {
	reg := caster.NewDeviceRegistry(drv, log)
	platforms, err := reg.Enumerate()
	if err != nil {
		return err
	}

	var preferred caster.DeviceMatcher
	saved := st != nil && st.Device != nil && st.Driver == drv.Name()
	if saved {
		preferred = st.Device
	}
	selected, selErr := reg.Select(preferred)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range platforms {
		fmt.Fprintf(tw, "platform %d\t%s\t%s\t%s\n", p.ID, p.Name, p.Vendor, p.Version)
		for _, d := range p.Devices {
			mark := " "
			if selErr == nil && d.Platform == selected.Platform && d.ID == selected.ID {
				mark = "*"
			}
			fmt.Fprintf(tw, "%s device %d\t%s\t%s\t%s\n", mark, d.ID, d.Name, d.Type, d.Version)
			printCaps(tw, d.Caps)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if selErr != nil {
		fmt.Fprintf(w, "no usable device: %v\n", selErr)
		return nil
	}
	fmt.Fprintf(w, "selected: %s (platform %d, device %d)\n", selected.Name, selected.Platform, selected.ID)
	if saved {
		if d, ok := st.Find(reg.Devices()); ok {
			fmt.Fprintf(w, "saved: %s (platform %d, device %d)\n", d.Name, d.Platform, d.ID)
		} else {
			fmt.Fprintf(w, "saved: %s is no longer present\n", st.Device.Name)
		}
	}

	if store != nil {
		rec := settings.RecordOf(selected)
		st.Driver = drv.Name()
		st.Device = &rec
		if err := store.Save(st); err != nil {
			return err
		}
		fmt.Fprintf(w, "saved to %s\n", store.Path())
	}
	return nil
}

func printCaps(w io.Writer, c device.Capabilities) {
	fmt.Fprintf(w, "\tcompute units\t%d @ %d MHz\n", c.ComputeUnits, c.ClockMHz)
	fmt.Fprintf(w, "\tglobal memory\t%d MiB (max alloc %d MiB)\n", c.GlobalMemSize>>20, c.MaxMemAllocSize>>20)
	fmt.Fprintf(w, "\tlocal memory\t%d KiB\n", c.LocalMemSize>>10)
	fmt.Fprintf(w, "\twork group\t%d\n", c.MaxWorkGroupSize)
	fmt.Fprintf(w, "\taddress bits\t%d little-endian=%t\n", c.AddressBits, c.LittleEndian)
	fmt.Fprintf(w, "\tsharing\t%t\n", c.Interop)
	fmt.Fprintf(w, "\textensions\t%s\n", strings.Join(c.Extensions, " "))
}
