package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahlab/ahlab/internal/cache"
)

var (
	cacheAddr  string
	cacheClear bool
)

// cacheInfoCmd reads cache statistics from a running server
var cacheInfoCmd = &cobra.Command{
	Use:   "cache-info",
	Short: "Show cache hit rates of a running server",
	Long: `Fetch per-table cache statistics from a running 'ahlab serve'.

Examples:
  ahlab cache-info
  ahlab cache-info --addr http://10.0.0.5:8080 --clear`,
	RunE: runCacheInfo,
}

func init() {
	rootCmd.AddCommand(cacheInfoCmd)
	cacheInfoCmd.Flags().StringVar(&cacheAddr, "addr", "http://localhost:8080", "Server base URL")
	cacheInfoCmd.Flags().BoolVar(&cacheClear, "clear", false, "Clear every table after reading")
}

func runCacheInfo(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimRight(cacheAddr, "/")

	stats, err := fetchCacheStats(cmd.Context(), client, http.MethodGet, base+"/api/cache")
	if err != nil {
		return err
	}
	if err := printCacheStats(stats); err != nil {
		return err
	}

	if !cacheClear {
		return nil
	}
	if _, err := fetchCacheStats(cmd.Context(), client, http.MethodDelete, base+"/api/cache"); err != nil {
		return err
	}
	fmt.Println("Cache cleared")
	return nil
}

func fetchCacheStats(ctx context.Context, client *http.Client, method, url string) (cache.Stats, error) {
	var stats cache.Stats

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return stats, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return stats, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("server returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return stats, fmt.Errorf("failed to decode cache stats: %w", err)
	}
	return stats, nil
}

func printCacheStats(stats cache.Stats) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tENTRIES\tHITS\tMISSES\tHIT RATE")
	for _, t := range stats.Tables {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.1f%%\n", t.Name, t.Entries, t.Hits, t.Misses, t.HitRate)
	}
	fmt.Fprintf(w, "total\t\t%d\t%d\t%.1f%%\n", stats.Hits, stats.Misses, stats.HitRate)
	return w.Flush()
}
