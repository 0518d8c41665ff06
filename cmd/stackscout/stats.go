package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stackscout/internal/config"
	"stackscout/internal/report"
	"stackscout/internal/store"
)

// statsWindow is the recency window reported as "added in last ...".
const statsWindow = 24 * time.Hour

const defaultTopN = 10

var statsTopN int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print database statistics",
	Long:  "Prints stored job totals, top skills, top companies and per-category counts.",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTopN, "top", defaultTopN, "how many top skills and companies to list")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := showStats(cfg, statsTopN); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	return nil
}

// showStats renders the plain-text statistics report. Shared with `run --stats`.
func showStats(cfg *config.Config, topN int) error {
	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := st.Stats(ctx, topN, statsWindow)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	fmt.Print(report.RenderStats(stats, statsWindow))
	return nil
}
