package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AndrewGaspar/parthenon/internal/store"
)

var (
	historyLimit  int
	historyOffset int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recorded runs, or the cycles of one run",
	Long: `Show recorded runs from the run database, newest first.

With a run ID, show that run's recorded cycles instead.

Examples:
  parthenon history
  parthenon history --limit 5 -o yaml
  parthenon history 01J9Z7V6ZK0Q8N3C2W4H5X6Y7Z`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of records")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "Records to skip")
	historyCmd.Flags().StringVarP(&historyFormat, "output", "o", "json", "Output format (json, yaml)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyFormat != "json" && historyFormat != "yaml" {
		return fmt.Errorf("unknown output format %q", historyFormat)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		runs, total, err := db.ListRuns(ctx, historyLimit, historyOffset)
		if err != nil {
			return err
		}
		return encode(cmd.OutOrStdout(), historyFormat, map[string]any{
			"runs":  runs,
			"total": total,
		})
	}

	run, err := db.GetRun(ctx, args[0])
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	cycles, err := db.ListCycles(ctx, run.ID, historyLimit, historyOffset)
	if err != nil {
		return err
	}
	return encode(cmd.OutOrStdout(), historyFormat, map[string]any{
		"run":    run,
		"cycles": cycles,
	})
}

func encode(w io.Writer, format string, v any) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
