package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the stackscout pipeline.
type Config struct {
	Source    SourceConfig
	Scrape    ScrapeConfig
	Database  DatabaseConfig
	Extractor ExtractorConfig
	Pipeline  PipelineConfig
	Daemon    DaemonConfig
}

// SourceConfig points at the job index.
type SourceConfig struct {
	ReadmeURL string // raw README carrying the postings table
}

// ScrapeConfig tunes posting-page fetching.
type ScrapeConfig struct {
	Retries       int           // additional attempts after the first failure
	RetryDelay    time.Duration // backoff base, doubled per retry
	HostReqPerSec float64       // per-host request rate
	HostBurst     int           // per-host burst allowance
}

// DatabaseConfig selects and addresses the backing store.
type DatabaseConfig struct {
	Driver string // "postgres" or "sqlite"
	DSN    string // postgresql:// URL, or a file path for sqlite
}

// ExtractorConfig controls the tech-stack extraction provider.
type ExtractorConfig struct {
	Provider string        // "gemini", "openai" or "nop"
	Model    string        // provider model identifier
	APIKey   string        // expanded from env by Load
	BaseURL  string        // override for the provider endpoint, normally empty
	Timeout  time.Duration // per-request timeout
}

// PipelineConfig bounds one pass of the batch processor.
type PipelineConfig struct {
	BatchSize     int
	MaxConcurrent int
	JobTimeout    time.Duration // fetch+extract+persist budget per posting
	BatchPause    time.Duration // gap between batches, 0 disables
}

// DaemonConfig controls repeated passes.
type DaemonConfig struct {
	Interval    time.Duration
	MetricsAddr string // prometheus listen address, empty disables
	LockPath    string // flock path guarding against a second daemon
}

const (
	defaultReadmeURL = "https://raw.githubusercontent.com/SimplifyJobs/Summer2026-Internships/dev/README.md"
	defaultModel     = "gemini-2.5-flash-lite"
	defaultSQLite    = "stackscout.db"
)

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Source struct {
		ReadmeURL string `yaml:"readme_url"`
	} `yaml:"source"`
	Scrape struct {
		Retries       int     `yaml:"retries"`
		RetryDelay    string  `yaml:"retry_delay"`
		HostReqPerSec float64 `yaml:"host_req_per_sec"`
		HostBurst     int     `yaml:"host_burst"`
	} `yaml:"scrape"`
	Database struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`
	Extractor struct {
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		APIKey   string `yaml:"api_key"`
		BaseURL  string `yaml:"base_url"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"extractor"`
	Pipeline struct {
		BatchSize     int    `yaml:"batch_size"`
		MaxConcurrent int    `yaml:"max_concurrent"`
		JobTimeout    string `yaml:"job_timeout"`
		BatchPause    string `yaml:"batch_pause"`
	} `yaml:"pipeline"`
	Daemon struct {
		Interval    string `yaml:"interval"`
		MetricsAddr string `yaml:"metrics_addr"`
		LockPath    string `yaml:"lock_path"`
	} `yaml:"daemon"`
}

// Default returns the configuration used when no config file is given.
// Credentials and the database DSN are picked up from the environment
// (GOOGLE_API_KEY, OPENAI_API_KEY, DB_CONNECTION_STRING).
func Default() *Config {
	cfg := &Config{
		Source: SourceConfig{ReadmeURL: defaultReadmeURL},
		Scrape: ScrapeConfig{
			Retries:       2,
			RetryDelay:    5 * time.Second,
			HostReqPerSec: 1,
			HostBurst:     2,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    defaultSQLite,
		},
		Extractor: ExtractorConfig{
			Provider: "gemini",
			Model:    defaultModel,
			Timeout:  60 * time.Second,
		},
		Pipeline: PipelineConfig{
			BatchSize:     10,
			MaxConcurrent: 5,
			JobTimeout:    90 * time.Second,
			BatchPause:    2 * time.Second,
		},
		Daemon: DaemonConfig{
			Interval: 24 * time.Hour,
			LockPath: filepath.Join(os.TempDir(), "stackscout.lock"),
		},
	}
	if dsn := os.Getenv("DB_CONNECTION_STRING"); dsn != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = dsn
	}
	cfg.Extractor.APIKey = keyForProvider(cfg.Extractor.Provider)
	return cfg
}

// Load reads and parses the YAML config file at path, overlays it on the
// defaults, validates the result and returns it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()

	if raw.Source.ReadmeURL != "" {
		cfg.Source.ReadmeURL = raw.Source.ReadmeURL
	}
	if raw.Scrape.Retries != 0 {
		cfg.Scrape.Retries = raw.Scrape.Retries
	}
	if raw.Scrape.RetryDelay != "" {
		cfg.Scrape.RetryDelay, err = time.ParseDuration(raw.Scrape.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("parse scrape.retry_delay %q: %w", raw.Scrape.RetryDelay, err)
		}
	}
	if raw.Scrape.HostReqPerSec != 0 {
		cfg.Scrape.HostReqPerSec = raw.Scrape.HostReqPerSec
	}
	if raw.Scrape.HostBurst != 0 {
		cfg.Scrape.HostBurst = raw.Scrape.HostBurst
	}
	if raw.Database.Driver != "" {
		cfg.Database.Driver = raw.Database.Driver
	}
	if raw.Database.DSN != "" {
		cfg.Database.DSN = raw.Database.DSN
	}
	if raw.Extractor.Provider != "" {
		cfg.Extractor.Provider = raw.Extractor.Provider
		cfg.Extractor.APIKey = keyForProvider(raw.Extractor.Provider)
	}
	if raw.Extractor.Model != "" {
		cfg.Extractor.Model = raw.Extractor.Model
	}
	if raw.Extractor.APIKey != "" {
		cfg.Extractor.APIKey = raw.Extractor.APIKey
	}
	cfg.Extractor.BaseURL = raw.Extractor.BaseURL
	if raw.Extractor.Timeout != "" {
		cfg.Extractor.Timeout, err = time.ParseDuration(raw.Extractor.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse extractor.timeout %q: %w", raw.Extractor.Timeout, err)
		}
	}
	if raw.Pipeline.BatchSize != 0 {
		cfg.Pipeline.BatchSize = raw.Pipeline.BatchSize
	}
	if raw.Pipeline.MaxConcurrent != 0 {
		cfg.Pipeline.MaxConcurrent = raw.Pipeline.MaxConcurrent
	}
	if raw.Pipeline.JobTimeout != "" {
		cfg.Pipeline.JobTimeout, err = time.ParseDuration(raw.Pipeline.JobTimeout)
		if err != nil {
			return nil, fmt.Errorf("parse pipeline.job_timeout %q: %w", raw.Pipeline.JobTimeout, err)
		}
	}
	if raw.Pipeline.BatchPause != "" {
		cfg.Pipeline.BatchPause, err = time.ParseDuration(raw.Pipeline.BatchPause)
		if err != nil {
			return nil, fmt.Errorf("parse pipeline.batch_pause %q: %w", raw.Pipeline.BatchPause, err)
		}
	}
	if raw.Daemon.Interval != "" {
		cfg.Daemon.Interval, err = time.ParseDuration(raw.Daemon.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse daemon.interval %q: %w", raw.Daemon.Interval, err)
		}
	}
	cfg.Daemon.MetricsAddr = raw.Daemon.MetricsAddr
	if raw.Daemon.LockPath != "" {
		cfg.Daemon.LockPath = raw.Daemon.LockPath
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// keyForProvider returns the conventional env credential for a provider.
func keyForProvider(provider string) string {
	switch provider {
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	}
	return ""
}

// Validate checks cfg after flag overrides have been applied, including the
// extractor credential. Scrape passes call it; read-only commands (stats,
// failed, dashboard) rely on the structural checks Load applies and work
// without an API key.
func Validate(cfg *Config) error {
	if err := validate(cfg); err != nil {
		return err
	}
	if cfg.Extractor.Provider != "nop" && cfg.Extractor.APIKey == "" {
		return fmt.Errorf("extractor.api_key is required for provider %q (set %s)",
			cfg.Extractor.Provider, envForProvider(cfg.Extractor.Provider))
	}
	return nil
}

// validate covers everything a credential-free command still depends on.
func validate(cfg *Config) error {
	if cfg.Source.ReadmeURL == "" {
		return fmt.Errorf("source.readme_url is required")
	}
	if cfg.Scrape.Retries < 0 {
		return fmt.Errorf("scrape.retries must not be negative, got %d", cfg.Scrape.Retries)
	}
	if cfg.Scrape.RetryDelay <= 0 {
		return fmt.Errorf("scrape.retry_delay must be positive, got %v", cfg.Scrape.RetryDelay)
	}
	if cfg.Scrape.HostReqPerSec <= 0 {
		return fmt.Errorf("scrape.host_req_per_sec must be positive, got %v", cfg.Scrape.HostReqPerSec)
	}
	if cfg.Scrape.HostBurst < 1 {
		return fmt.Errorf("scrape.host_burst must be at least 1, got %d", cfg.Scrape.HostBurst)
	}
	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be \"postgres\" or \"sqlite\", got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required (set DB_CONNECTION_STRING for postgres)")
	}
	switch cfg.Extractor.Provider {
	case "gemini", "openai", "nop":
	default:
		return fmt.Errorf("extractor.provider must be \"gemini\", \"openai\" or \"nop\", got %q", cfg.Extractor.Provider)
	}
	if cfg.Extractor.Timeout <= 0 {
		return fmt.Errorf("extractor.timeout must be positive, got %v", cfg.Extractor.Timeout)
	}
	if cfg.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1, got %d", cfg.Pipeline.BatchSize)
	}
	if cfg.Pipeline.MaxConcurrent < 1 {
		return fmt.Errorf("pipeline.max_concurrent must be at least 1, got %d", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Pipeline.JobTimeout <= 0 {
		return fmt.Errorf("pipeline.job_timeout must be positive, got %v", cfg.Pipeline.JobTimeout)
	}
	if cfg.Pipeline.BatchPause < 0 {
		return fmt.Errorf("pipeline.batch_pause must not be negative, got %v", cfg.Pipeline.BatchPause)
	}
	if cfg.Daemon.Interval <= 0 {
		return fmt.Errorf("daemon.interval must be positive, got %v", cfg.Daemon.Interval)
	}
	return nil
}

func envForProvider(provider string) string {
	if provider == "openai" {
		return "OPENAI_API_KEY"
	}
	return "GOOGLE_API_KEY"
}
