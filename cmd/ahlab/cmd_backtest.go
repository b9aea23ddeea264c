package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/modules/backtest"
)

// Backtest command flags
var (
	btSide       string
	btSize       string
	btPredicates []string
	btBets       bool
	btFormat     string
)

// backtestCmd runs one strategy over the loaded matches
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Backtest one strategy",
	Long: `Backtest a single strategy. Factors are named by category.key or by their
full role|category|key identity.

Examples:
  ahlab backtest --side side.home --size size.flat
  ahlab backtest --side side.favourite --size size.flat -p form.home_hot -p line.home_gives --bets`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVar(&btSide, "side", "", "Side factor")
	backtestCmd.Flags().StringVar(&btSize, "size", "", "Stake factor")
	backtestCmd.Flags().StringSliceVarP(&btPredicates, "predicate", "p", nil, "Predicate factors (repeatable)")
	backtestCmd.Flags().BoolVar(&btBets, "bets", false, "Print every settled bet")
	backtestCmd.Flags().StringVar(&btFormat, "format", "table", "Output format: table, json")
	_ = backtestCmd.MarkFlagRequired("side")
	_ = backtestCmd.MarkFlagRequired("size")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	_, container, _, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer container.Close()

	strategy, err := backtest.ResolveStrategy(container.Catalog, btSide, btSize, btPredicates)
	if err != nil {
		return err
	}
	report := container.Backtest.Run(strategy)

	if btFormat == "json" {
		if !btBets {
			report.Bets = nil
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	s, r := report.Summary, report.Risk
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Strategy\t%s\n", strings.Join(strategy.Labels(), " + "))
	fmt.Fprintf(w, "Bets\t%d (won %d incl. %d half, lost %d incl. %d half, pushed %d)\n",
		s.TotalBets, s.Wins, s.HalfWins, s.Losses, s.HalfLosses, s.Pushes)
	fmt.Fprintf(w, "Stake\t%.2f\n", s.TotalStake)
	fmt.Fprintf(w, "Profit\t%.2f\n", s.TotalProfit)
	fmt.Fprintf(w, "ROI\t%.2f%%\n", s.ROI)
	fmt.Fprintf(w, "Win rate\t%.2f%%\n", s.WinRate)
	fmt.Fprintf(w, "Max drawdown\t%.2f (%.2f%%)\n", r.MaxDrawdown, r.MaxDrawdownPercent)
	fmt.Fprintf(w, "Sharpe\t%.3f\n", r.SharpeRatio)
	if err := w.Flush(); err != nil {
		return err
	}

	if !btBets || len(report.Bets) == 0 {
		return nil
	}

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tMATCH\tSIDE\tLINE\tODDS\tSTAKE\tOUTCOME\tPROFIT")
	for _, b := range report.Bets {
		fmt.Fprintf(w, "%s\t%s\t%s\t%+.2f\t%.2f\t%.2f\t%s\t%+.2f\n",
			b.Date.Format("2006-01-02"), b.MatchKey, b.Side, b.Line, b.Odds, b.Stake, b.Outcome, b.Profit)
	}
	return w.Flush()
}
