package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"stackscout/internal/report"
	"stackscout/internal/store"
	"stackscout/internal/tracker"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Browse statistics interactively (TUI)",
	Long:  "Opens a terminal dashboard with overview, top-skill, company and recent-posting tabs.",
	RunE:  runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
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

	// The dashboard runs a TUI; any log output before the alt-screen starts
	// corrupts the display, so the tracker gets a discard logger.
	silentLogger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr := tracker.New(st, silentLogger)

	if err := report.RunDashboard(tr); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard error: %v\n", err)
		os.Exit(1)
	}
	return nil
}
