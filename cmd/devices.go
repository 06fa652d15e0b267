// cmd/devices.go
package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ColonelBlimp/morsevision/internal/audio"
	"github.com/spf13/cobra"
)

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  `Lists capture devices in the order the device_index setting refers to.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, err := loadSettings()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			capture := audio.New(audio.DefaultConfig())
			capture.SetLogger(log.Named("audio"))
			if err := capture.Init(); err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			defer capture.Close()

			devices, err := capture.Devices()
			if err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}
}

func printDevices(w io.Writer, devices []audio.Device) error {
	if len(devices) == 0 {
		_, err := fmt.Fprintln(w, "no capture devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tDEFAULT\tNAME")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Index, def, d.Name)
	}
	return tw.Flush()
}
