// Package main is the entry point for ahlab, the Asian Handicap strategy
// backtester and genetic optimizer.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/config"
	"github.com/ahlab/ahlab/internal/di"
	"github.com/ahlab/ahlab/pkg/logger"
)

var (
	logLevel  string
	logPretty bool
)

// rootCmd is the base command for the ahlab CLI
var rootCmd = &cobra.Command{
	Use:   "ahlab",
	Short: "Asian Handicap strategy backtester and genetic optimizer",
	Long: `ahlab backtests Asian Handicap betting strategies built from a catalog of
expression factors, and searches factor combinations with a genetic algorithm.

Configuration comes from AHLAB_* environment variables (a .env file is read
if present). Optimizer settings can be overridden from a YAML file or flags.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from AHLAB_LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Pretty console logs")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, builds the logger and wires the container
func bootstrap(cmd *cobra.Command) (*config.Config, *di.Container, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}

	log := newLogger(cmd, cfg)

	container, err := di.Wire(cfg, log)
	if err != nil {
		return nil, nil, log, err
	}
	return cfg, container, log, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	level := cfg.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	pretty := cfg.LogPretty || logPretty

	log := logger.New(logger.Config{Level: level, Pretty: pretty})
	logger.SetGlobalLogger(log)
	return log
}
