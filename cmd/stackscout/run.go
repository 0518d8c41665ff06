package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"stackscout/internal/config"
	"stackscout/internal/metrics"
	"stackscout/internal/pipeline"
	"stackscout/internal/runlock"
	"stackscout/internal/scheduler"
	"stackscout/internal/source"
	"stackscout/internal/store"
	"stackscout/internal/tracker"
)

var (
	daemonMode    bool
	intervalHours int
	batchSize     int
	maxConcurrent int
	maxJobs       int
	statsOnly     bool
	retryFailed   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scrape new postings and extract their tech stacks",
	Long:  "Runs one full pass: fetch the posting index, scrape each new posting, extract its tech stack and store the result. With --daemon, repeats every interval until SIGINT/SIGTERM.",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	// Same flags on the bare root invocation and on `run`.
	addRunFlags(rootCmd.Flags())
	addRunFlags(runCmd.Flags())
}

func addRunFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&daemonMode, "daemon", "d", false, "run forever, one pass per interval")
	fs.IntVarP(&intervalHours, "interval", "i", 24, "hours between passes in daemon mode")
	fs.IntVarP(&batchSize, "batch-size", "b", 10, "postings per batch")
	fs.IntVarP(&maxConcurrent, "max-concurrent", "c", 5, "concurrent postings per batch")
	fs.IntVarP(&maxJobs, "max-jobs", "m", 0, "cap postings per pass (0 = unlimited)")
	fs.BoolVarP(&statsOnly, "stats", "s", false, "print database statistics instead of scraping")
	fs.BoolVar(&retryFailed, "retry-failed", false, "include previously failed URLs instead of skipping them")
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	applyRunFlags(cmd, cfg)

	// Stats mode only reads the database, so it skips extractor validation.
	if statsOnly {
		if err := showStats(cfg, defaultTopN); err != nil {
			logger.Error("failed to read stats", "error", err)
			os.Exit(1)
		}
		return nil
	}

	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("config loaded",
		"driver", cfg.Database.Driver,
		"provider", cfg.Extractor.Provider,
		"batch_size", cfg.Pipeline.BatchSize,
		"max_concurrent", cfg.Pipeline.MaxConcurrent,
		"interval", cfg.Daemon.Interval.String(),
	)

	st, err := store.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}
	fetcher := buildFetcher(cfg, httpClient, logger)
	extractor := setupExtractor(cfg, logger)
	src := source.NewGitHubSource(cfg.Source.ReadmeURL, httpClient)
	tr := tracker.New(st, logger)

	proc := pipeline.New(fetcher, extractor, st, pipeline.Options{
		BatchSize:     cfg.Pipeline.BatchSize,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
		MaxJobs:       maxJobs,
		JobTimeout:    cfg.Pipeline.JobTimeout,
		BatchPause:    cfg.Pipeline.BatchPause,
	}, logger)

	sched := scheduler.New(src, tr, proc, scheduler.Options{
		Daemon:      daemonMode,
		Interval:    cfg.Daemon.Interval,
		RetryFailed: retryFailed,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if daemonMode {
		lock, err := runlock.Acquire(cfg.Daemon.LockPath)
		if err != nil {
			logger.Error("another daemon appears to be running", "error", err)
			os.Exit(1)
		}
		defer lock.Release()

		if cfg.Daemon.MetricsAddr != "" {
			go metrics.Serve(ctx, cfg.Daemon.MetricsAddr, logger)
		}
	}

	// Per-job failures are recorded in the store, not surfaced here; only
	// pass-level errors (index or store down) make a one-shot run fail.
	if err := sched.Run(ctx); err != nil {
		logger.Error("pass failed", "error", err)
		os.Exit(1)
	}

	logger.Info("goodbye")
	return nil
}

// applyRunFlags overlays explicitly set flags on the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("interval") {
		cfg.Daemon.Interval = time.Duration(intervalHours) * time.Hour
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Pipeline.BatchSize = batchSize
	}
	if cmd.Flags().Changed("max-concurrent") {
		cfg.Pipeline.MaxConcurrent = maxConcurrent
	}
}
