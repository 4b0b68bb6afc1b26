package main

import (
	"github.com/spf13/cobra"

	"github.com/AndrewGaspar/parthenon/internal/config"
)

var (
	configPath string

	// exitCode is the process status set by the run command.
	exitCode int
)

var rootCmd = &cobra.Command{
	Use:   "parthenon",
	Short: "Block-structured mesh time integration driver",
	Long: `parthenon evolves a block-structured mesh through a multi-stage time
integrator, dispatching per-block kernels to an execution space and
recording every run in a local SQLite database.

Configuration is read from --config (or $PARTHENON_CONFIG) and can be
overridden with PARTHENON_* environment variables, for example
PARTHENON_RUN_CYCLE_LIMIT=10.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML, TOML or JSON run file")
}

// loadConfig loads configuration from the --config flag.
func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}
