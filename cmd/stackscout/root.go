package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"stackscout/internal/config"
	"stackscout/internal/extract"
	"stackscout/internal/model"
	"stackscout/internal/scrape"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "stackscout",
	Short: "Tech-stack radar for job postings",
	Long:  "StackScout follows a curated internship index, scrapes each new posting and extracts the role's tech stack into a queryable database.",
	// Default to `run` so that `stackscout` with no args does a pass.
	// This keeps cron entries that invoke the binary directly working.
	RunE: runRun,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: STACKSCOUT_CONFIG env var or ./stackscout.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > STACKSCOUT_CONFIG env var > "./stackscout.yaml"
// A missing file is only an error when a path was named; otherwise the
// built-in defaults (plus environment credentials) apply.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	if env := os.Getenv("STACKSCOUT_CONFIG"); env != "" {
		return config.Load(env)
	}
	if _, err := os.Stat("stackscout.yaml"); err == nil {
		return config.Load("stackscout.yaml")
	}
	return config.Default(), nil
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
}

func setupExtractor(cfg *config.Config, logger *slog.Logger) model.SkillExtractor {
	switch cfg.Extractor.Provider {
	case "openai":
		logger.Info("using openai extractor", "model", cfg.Extractor.Model)
		provider := extract.NewOpenAIProvider(cfg.Extractor.BaseURL, cfg.Extractor.APIKey, cfg.Extractor.Model)
		return extract.NewExtractor(provider, extract.ExtractSkillsTemplate, logger)
	case "nop":
		logger.Info("using nop extractor, postings are stored without skills")
		return extract.NewNopExtractor()
	default:
		logger.Info("using gemini extractor", "model", cfg.Extractor.Model)
		llmClient := &http.Client{Timeout: cfg.Extractor.Timeout}
		provider := extract.NewGeminiProvider(cfg.Extractor.BaseURL, cfg.Extractor.APIKey, cfg.Extractor.Model, llmClient)
		return extract.NewExtractor(provider, extract.ExtractSkillsTemplate, logger)
	}
}

// buildFetcher assembles the posting-page fetcher: scraper → per-host rate
// limit → retries.
func buildFetcher(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.PageFetcher {
	limiter := scrape.NewHostLimiter(cfg.Scrape.HostReqPerSec, cfg.Scrape.HostBurst)
	var fetcher model.PageFetcher = scrape.NewPageScraper(httpClient)
	fetcher = scrape.NewRateLimitedFetcher(fetcher, limiter)
	return scrape.NewRetryFetcher(fetcher, cfg.Scrape.Retries, cfg.Scrape.RetryDelay, logger)
}
