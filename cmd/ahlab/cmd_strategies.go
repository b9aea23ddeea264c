package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/di"
	"github.com/ahlab/ahlab/internal/modules/discovery"
)

var (
	stratRunID  string
	stratLimit  int
	stratFormat string
)

// strategiesCmd lists discovered strategies from the database
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List discovered strategies, best fitness first",
	Long: `List strategies recorded by previous optimizer runs.

Examples:
  ahlab strategies --limit 20
  ahlab strategies --run 3f2c... --format json`,
	RunE: runStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
	strategiesCmd.Flags().StringVar(&stratRunID, "run", "", "Only this run id")
	strategiesCmd.Flags().IntVar(&stratLimit, "limit", 25, "Maximum rows")
	strategiesCmd.Flags().StringVar(&stratFormat, "format", "table", "Output format: table, json")
}

func runStrategies(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log := newLogger(cmd, cfg)

	// only the database is needed, not the match data
	container, err := di.InitializeDatabases(cfg, log)
	if err != nil {
		return err
	}
	defer container.Close()

	store := discovery.NewStore(container.DB.Conn(), log)
	entries, err := store.List(cmd.Context(), discovery.ListFilter{RunID: stratRunID, Limit: stratLimit})
	if err != nil {
		return err
	}

	if stratFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tGEN\tFITNESS\tROI%\tBETS\tWIN%\tDD%\tFACTORS")
	for _, e := range entries {
		fmt.Fprintf(w, "%.8s\t%d\t%.3f\t%.2f\t%d\t%.1f\t%.1f\t%s\n",
			e.RunID, e.Generation, e.Fitness, e.ROI, e.Matches, e.WinRate, e.MaxDrawdownPercent,
			strings.Join(e.Factors, " "))
	}
	return w.Flush()
}
