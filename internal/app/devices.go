package app

import (
	"fmt"
	"io"

	"talkpaste/internal/audio"
)

// ListDevices prints the input-capable audio devices.
func ListDevices(out io.Writer) error {
	devices, err := audio.ListDevices()
	if err != nil {
		return err
	}
	PrintDevices(out, devices)
	return nil
}

// PrintDevices writes one line per device, marking the default input.
func PrintDevices(out io.Writer, devices []audio.DeviceInfo) {
	if len(devices) == 0 {
		fmt.Fprintln(out, "no input devices found")
		return
	}
	for _, d := range devices {
		mark := " "
		if d.Default {
			mark = "*"
		}
		fmt.Fprintf(out, "%s %3d  %-40s  %-16s  %d ch  %.0f Hz\n",
			mark, d.ID, d.Name, d.HostAPI, d.MaxInputChannels, d.DefaultSampleRate)
	}
}
