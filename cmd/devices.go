package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvcctl/internal/catalog"
	"github.com/smazurov/uvcctl/internal/devices"
)

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Long:  `Lists V4L2 capture nodes with their USB ids and largest supported frame size.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			found, err := newDetector().FindDevices()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), found)
			}
			return printDevices(cmd.OutOrStdout(), found)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// CreateResolutionsCmd creates the resolutions command.
func CreateResolutionsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "resolutions",
		Short: "List the resolution catalog",
		Long: `Lists the resolution indices accepted by --index and resolution_index. ` +
			`The default entry and the safe entries used by a hard restart are marked.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat := catalog.Default()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), cat.Entries())
			}
			return printResolutions(cmd.OutOrStdout(), cat)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printDevices(w io.Writer, found []devices.DeviceInfo) error {
	if len(found) == 0 {
		_, err := fmt.Fprintln(w, "no capture devices found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tPATH\tNAME\tUSB\tMAX\tHIGH-RES")
	for _, d := range found {
		usb := "-"
		if d.VendorID != 0 {
			usb = fmt.Sprintf("%04x:%04x", d.VendorID, d.ProductID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%dx%d\t%s\n",
			d.Index, d.DevicePath, d.DeviceName, usb, d.MaxWidth, d.MaxHeight, yesNo(d.HighRes()))
	}
	return tw.Flush()
}

func printResolutions(w io.Writer, cat *catalog.Catalog) error {
	safe := make(map[int]bool)
	for _, i := range cat.SafeIndices() {
		safe[i] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tSIZE\tFPS\tFORMAT\t")
	for i, e := range cat.Entries() {
		var mark string
		switch {
		case i == cat.DefaultIndex():
			mark = "default"
		case safe[i]:
			mark = "safe"
		}
		fmt.Fprintf(tw, "%d\t%dx%d\t%d\t%s\t%s\n", i, e.Width, e.Height, e.FPS, e.Format, mark)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
