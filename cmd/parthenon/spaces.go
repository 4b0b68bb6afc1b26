package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AndrewGaspar/parthenon/internal/dispatch"
)

var spacesCmd = &cobra.Command{
	Use:   "spaces",
	Short: "List execution spaces and the loop patterns they support",
	RunE:  runSpaces,
}

func init() {
	rootCmd.AddCommand(spacesCmd)
}

func runSpaces(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg := dispatch.NewDefaultRegistry(cfg.Run.HostWorkers, cfg.Run.DeviceMultiprocessors, cfg.Run.DeviceTeamSize)

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCONCURRENCY\tTEAM\tVECTOR\tPATTERNS")
	for _, c := range reg.List() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", c.Name, c.Concurrency, c.TeamSize, c.VectorLength, strings.Join(c.Patterns, ","))
	}
	return tw.Flush()
}
