package cmd

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/uvcctl/internal/control"
	"github.com/smazurov/uvcctl/internal/properties"
)

// CreatePropertiesCmd creates the properties command.
func CreatePropertiesCmd() *cobra.Command {
	var opts cameraOptions
	var probe, asJSON bool

	cmd := &cobra.Command{
		Use:   "properties",
		Short: "Show camera property values",
		Long: `Opens the camera, applies the [properties] presets and prints every known property. ` +
			`With --probe each property is written and read back first to find out whether the driver honours it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := opts.initLogging("cmd")
			ctrl, _, err := opts.open(cmd.Context(), false, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			if probe {
				if _, err := ctrl.ProbeAll(); err != nil {
					return err
				}
			}
			views, err := ctrl.Properties()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			return printProperties(cmd.OutOrStdout(), views)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().BoolVar(&probe, "probe", false, "Probe which properties respond to writes")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

// CreateSetCmd creates the set command.
func CreateSetCmd() *cobra.Command {
	var opts cameraOptions
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Write one camera property",
		Long: `Writes a property through its fallback chain and prints every attempt. ` +
			`Exits non-zero when no identifier accepted the value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("value %q is not a number", args[1])
			}

			logger := opts.initLogging("cmd")
			ctrl, _, err := opts.open(cmd.Context(), false, logger)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			res, setErr := ctrl.SetProperty(args[0], value)
			if res.Name == "" {
				return setErr
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
			} else if err := printResult(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			return setErr
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func printProperties(w io.Writer, views []control.PropertyView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tVALUE\tCHANGEABLE\tEXTENDED")
	for _, v := range views {
		var extended []string
		for _, id := range slices.Sorted(maps.Keys(v.Extended)) {
			extended = append(extended, fmt.Sprintf("%d=%g", id, v.Extended[id]))
		}
		fmt.Fprintf(tw, "%s\t%d\t%g\t%s\t%s\n", v.Name, v.ID, v.Value, v.Changeable, strings.Join(extended, " "))
	}
	return tw.Flush()
}

func printResult(w io.Writer, res properties.Result) error {
	verdict := "not applied"
	if res.Applied {
		verdict = fmt.Sprintf("applied via id %d", res.AppliedID)
	}
	if _, err := fmt.Fprintf(w, "%s: requested %g, now %g (%s)\n", res.Name, res.Requested, res.Value, verdict); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  STAGE\tID\tBEFORE\tAFTER\tSET\tACCEPTED")
	for _, a := range res.Attempts {
		fmt.Fprintf(tw, "  %s\t%d\t%g\t%g\t%s\t%s\n", a.Stage, a.ID, a.Before, a.After, yesNo(a.SetOK), yesNo(a.Accepted))
	}
	return tw.Flush()
}
