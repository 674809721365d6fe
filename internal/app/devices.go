// ABOUTME: Device table output
// ABOUTME: Prints the enumerated devices for -list
package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/Resonate-Protocol/resonate-pitch/pkg/audio"
)

// WriteDeviceTable writes one row per device. Default devices are marked
// with > (input) and < (output).
func WriteDeviceTable(w io.Writer, devs []audio.DeviceCapabilities) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tNAME\tHOST API\tIN\tOUT\tRATE\t")
	for _, d := range devs {
		mark := ""
		if d.IsDefaultInput {
			mark += ">"
		}
		if d.IsDefaultOutput {
			mark += "<"
		}
		fmt.Fprintf(tw, "%s%d\t%s\t%s\t%d\t%d\t%.0f\t\n",
			mark, d.ID, d.Name, d.HostAPI, d.MaxInputChannels, d.MaxOutputChannels, d.DefaultSampleRate)
	}

	return tw.Flush()
}

// ListDevices enumerates through c, writes the device table to w and closes c
func ListDevices(w io.Writer, c *Controller) error {
	defer c.Close()

	if err := c.Enumerate(); err != nil {
		return err
	}
	return WriteDeviceTable(w, c.Devices())
}
