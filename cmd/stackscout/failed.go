package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stackscout/internal/report"
	"stackscout/internal/store"
)

var (
	failedLimit int
	failedClear bool
)

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List or clear failed posting URLs",
	Long:  "Lists URLs that failed scraping or extraction, with attempt counts and reasons. With --clear, empties the list so the next pass retries everything.",
	RunE:  runFailed,
}

func init() {
	rootCmd.AddCommand(failedCmd)
	failedCmd.Flags().IntVar(&failedLimit, "limit", 0, "max URLs to list (0 = all)")
	failedCmd.Flags().BoolVar(&failedClear, "clear", false, "clear the failed-URL list")
}

func runFailed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if failedClear {
		n, err := st.ClearAllFailures(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared %d failed URLs.\n", n)
		return nil
	}

	failed, err := st.FailedURLs(ctx, failedLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(report.RenderFailed(failed))
	return nil
}
