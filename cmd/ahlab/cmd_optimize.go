package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/modules/discovery"
	"github.com/ahlab/ahlab/internal/modules/optimizer"
)

// Optimize command flags
var (
	optConfigPath     string
	optPopulation     int
	optGenerations    int
	optMutationRate   float64
	optCrossoverRate  float64
	optEliteSize      int
	optMinFactors     int
	optMaxFactors     int
	optTournamentSize int
	optSeed           int64
	optCheckpoint     string
	optResume         string
	optMinSample      int
	optMinROI         float64
	optTop            int
	optFormat         string
)

// optimizeCmd runs the genetic optimizer in the foreground
var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Search factor combinations with the genetic optimizer",
	Long: `Run the genetic optimizer until the generation budget is spent or the
process is interrupted. Discovered strategies are appended to the discovery
log and the database as they are found.

Examples:
  ahlab optimize
  ahlab optimize --config optimizer.yaml --generations 50
  ahlab optimize --seed 42 --checkpoint run.ckpt
  ahlab optimize --resume run.ckpt --generations 200`,
	RunE: runOptimize,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)

	f := optimizeCmd.Flags()
	f.StringVar(&optConfigPath, "config", "", "YAML optimizer overrides")
	f.IntVar(&optPopulation, "population", 0, "Population size")
	f.IntVar(&optGenerations, "generations", 0, "Maximum generations")
	f.Float64Var(&optMutationRate, "mutation-rate", 0, "Mutation probability per child")
	f.Float64Var(&optCrossoverRate, "crossover-rate", 0, "Crossover probability per child")
	f.IntVar(&optEliteSize, "elite", 0, "Genomes carried over unchanged")
	f.IntVar(&optMinFactors, "min-factors", 0, "Minimum predicates per genome")
	f.IntVar(&optMaxFactors, "max-factors", 0, "Maximum predicates per genome")
	f.IntVar(&optTournamentSize, "tournament", 0, "Tournament size")
	f.Int64Var(&optSeed, "seed", 0, "Random seed (0 seeds from the clock)")
	f.StringVar(&optCheckpoint, "checkpoint", "", "Write a checkpoint here after each generation")
	f.StringVar(&optResume, "resume", "", "Resume from a checkpoint")
	f.IntVar(&optMinSample, "min-sample", 0, "Minimum bets for a strategy to qualify")
	f.Float64Var(&optMinROI, "min-roi", 0, "Minimum ROI percent for a strategy to qualify")
	f.IntVar(&optTop, "top", 10, "Discovered strategies to print at the end")
	f.StringVar(&optFormat, "format", "table", "Output format: table, json")
}

// flagOverrides turns explicitly set flags into optimizer overrides
func flagOverrides(cmd *cobra.Command) optimizer.Overrides {
	var o optimizer.Overrides
	f := cmd.Flags()

	intFlag := func(name string, v int) *int {
		if f.Changed(name) {
			return &v
		}
		return nil
	}
	floatFlag := func(name string, v float64) *float64 {
		if f.Changed(name) {
			return &v
		}
		return nil
	}
	stringFlag := func(name, v string) *string {
		if f.Changed(name) {
			return &v
		}
		return nil
	}

	o.PopulationSize = intFlag("population", optPopulation)
	o.MaxGenerations = intFlag("generations", optGenerations)
	o.MutationRate = floatFlag("mutation-rate", optMutationRate)
	o.CrossoverRate = floatFlag("crossover-rate", optCrossoverRate)
	o.EliteSize = intFlag("elite", optEliteSize)
	o.MinFactors = intFlag("min-factors", optMinFactors)
	o.MaxFactors = intFlag("max-factors", optMaxFactors)
	o.TournamentSize = intFlag("tournament", optTournamentSize)
	if f.Changed("seed") {
		seed := optSeed
		o.Seed = &seed
	}
	o.CheckpointPath = stringFlag("checkpoint", optCheckpoint)
	o.ResumeFrom = stringFlag("resume", optResume)

	if f.Changed("min-sample") || f.Changed("min-roi") {
		o.Fitness = &optimizer.FitnessOverrides{
			MinSampleSize: intFlag("min-sample", optMinSample),
			MinROI:        floatFlag("min-roi", optMinROI),
		}
	}
	return o
}

func runOptimize(cmd *cobra.Command, args []string) error {
	overrides := optimizer.Overrides{}
	if optConfigPath != "" {
		fileOverrides, err := config.LoadOverrides(optConfigPath)
		if err != nil {
			return err
		}
		overrides = fileOverrides
	}
	overrides = overrides.Apply(flagOverrides(cmd))

	_, container, log, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	status, err := container.Engine.Run(ctx, overrides)
	if err != nil {
		return err
	}

	entries, err := container.Store.List(context.Background(), discovery.ListFilter{RunID: status.RunID, Limit: optTop})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list discovered strategies")
	}

	if optFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"status":     status,
			"strategies": entries,
		})
	}

	fmt.Printf("Run %s: %d generations, best fitness %.4f, %d discovered, %d repairs\n",
		status.RunID, status.Generation, status.BestFitness, status.Discovered, status.Repairs)
	if len(status.BestFactors) > 0 {
		fmt.Printf("Best: %s (ROI %.2f%% over %d bets)\n",
			strings.Join(status.BestFactors, " + "), status.BestROI, status.BestMatches)
	}
	if len(entries) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FITNESS\tROI%\tBETS\tWIN%\tDD%\tFACTORS")
	for _, e := range entries {
		fmt.Fprintf(w, "%.3f\t%.2f\t%d\t%.1f\t%.1f\t%s\n",
			e.Fitness, e.ROI, e.Matches, e.WinRate, e.MaxDrawdownPercent, strings.Join(e.Factors, " "))
	}
	return w.Flush()
}
