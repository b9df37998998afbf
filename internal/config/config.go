// Package config provides configuration loading for the extractor.
// Supports YAML files, environment variables, and programmatic overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the extractor processes.
type Config struct {
	Vendor  VendorConfig  `yaml:"vendor"`
	Extract ExtractConfig `yaml:"extract"`
	Storage StorageConfig `yaml:"storage"`
	Export  ExportConfig  `yaml:"export"`
	Jobs    JobsConfig    `yaml:"jobs"`
	Logging LoggingConfig `yaml:"logging"`
}

// VendorConfig holds the document parsing API settings.
type VendorConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	PollTimeout    time.Duration `yaml:"poll_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// ExtractConfig selects and tunes the extraction backend.
type ExtractConfig struct {
	Backend     string `yaml:"backend"` // vendor or gemini
	GeminiModel string `yaml:"gemini_model"`
	Workers     int    `yaml:"workers"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // local or gcs
	LocalDir  string `yaml:"local_dir"`
	GCSBucket string `yaml:"gcs_bucket"`
}

// ExportConfig holds the optional BigQuery sink settings.
type ExportConfig struct {
	Enabled   bool   `yaml:"enabled"`
	ProjectID string `yaml:"project_id"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

// JobsConfig tunes the background processing queue.
type JobsConfig struct {
	BufferSize   int           `yaml:"buffer_size"`
	Workers      int           `yaml:"workers"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads configuration from a YAML file and applies environment
// overrides. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for
// development.
func DefaultConfig() *Config {
	return &Config{
		Vendor: VendorConfig{
			Model:          "extract-latest",
			PollInterval:   5 * time.Second,
			PollTimeout:    10 * time.Minute,
			RequestTimeout: 5 * time.Minute,
			MaxRetries:     3,
		},
		Extract: ExtractConfig{
			Backend: "vendor",
			Workers: 4,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "data",
		},
		Jobs: JobsConfig{
			BufferSize:   32,
			Workers:      5,
			RetryBackoff: time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Storage.Backend != "local" && c.Storage.Backend != "gcs" {
		return fmt.Errorf("invalid storage backend: %s", c.Storage.Backend)
	}
	if c.Storage.Backend == "gcs" && c.Storage.GCSBucket == "" {
		return fmt.Errorf("gcs storage backend requires a bucket")
	}
	if c.Extract.Backend != "vendor" && c.Extract.Backend != "gemini" {
		return fmt.Errorf("invalid extract backend: %s", c.Extract.Backend)
	}
	if c.Extract.Workers < 1 {
		return fmt.Errorf("extract workers must be at least 1")
	}
	if c.Export.Enabled && (c.Export.ProjectID == "" || c.Export.Dataset == "" || c.Export.Table == "") {
		return fmt.Errorf("export requires project_id, dataset and table")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VENDOR_BASE_URL"); v != "" {
		cfg.Vendor.BaseURL = v
	}
	if v := os.Getenv("VENDOR_API_KEY"); v != "" {
		cfg.Vendor.APIKey = v
	}
	if v := os.Getenv("VENDOR_MODEL"); v != "" {
		cfg.Vendor.Model = v
	}
	if v := os.Getenv("EXTRACT_BACKEND"); v != "" {
		cfg.Extract.Backend = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Extract.GeminiModel = v
	}
	if v := os.Getenv("EXTRACT_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Extract.Workers = n
		}
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("STORAGE_DIR"); v != "" {
		cfg.Storage.LocalDir = v
	}
	if v := os.Getenv("GCS_BUCKET"); v != "" {
		cfg.Storage.GCSBucket = v
	}
	if v := os.Getenv("BIGQUERY_PROJECT"); v != "" {
		cfg.Export.Enabled = true
		cfg.Export.ProjectID = v
	}
	if v := os.Getenv("BIGQUERY_DATASET"); v != "" {
		cfg.Export.Dataset = v
	}
	if v := os.Getenv("BIGQUERY_TABLE"); v != "" {
		cfg.Export.Table = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
