// Package config loads and validates the engine configuration. Config
// files are YAML; ${VAR} references are expanded from the environment at
// load time so credentials stay out of the file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kohr2/dashboard-killer-graph-sub005/errors"
	"github.com/kohr2/dashboard-killer-graph-sub005/source/filesource"
	"github.com/kohr2/dashboard-killer-graph-sub005/source/natssource"
)

// Storage backend names accepted by StorageConfig.Backend.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageBadger = "badger"
)

// Extractor backend names accepted by ExtractorConfig.Backend.
const (
	ExtractorNoop  = "noop"
	ExtractorRegex = "regex"
	ExtractorNLP   = "nlp"
	ExtractorLLM   = "llm"
)

// Config is the complete engine configuration.
type Config struct {
	// OntologyDir holds the ontology definition JSON files.
	OntologyDir string          `yaml:"ontology_dir"`
	Storage     StorageConfig   `yaml:"storage"`
	Extractor   ExtractorConfig `yaml:"extractor"`
	Pipeline    PipelineConfig  `yaml:"pipeline"`
	Sources     SourcesConfig   `yaml:"sources"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Logging     LoggingConfig   `yaml:"logging"`
}

// StorageConfig selects and configures the graph backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is the database file (sqlite) or directory (badger). Empty
	// selects an in-memory database for both.
	Path string `yaml:"path"`
}

// ExtractorConfig selects and configures the entity extractor.
type ExtractorConfig struct {
	Backend string `yaml:"backend"`

	// NLP service settings, used when Backend is "nlp".
	ServiceURL        string        `yaml:"service_url"`
	APIKey            string        `yaml:"api_key"`
	Ontology          string        `yaml:"ontology"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`

	// LLM settings, used when Backend is "llm".
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMAPIKey  string `yaml:"llm_api_key"`
	LLMModel   string `yaml:"llm_model"`
}

// PipelineConfig tunes run behavior.
type PipelineConfig struct {
	// Concurrency bounds how many sources a batch run processes at once.
	Concurrency int `yaml:"concurrency"`
	// Schedule is an optional cron expression for recurring runs.
	Schedule string `yaml:"schedule"`
}

// SourcesConfig lists the configured ingestion sources.
type SourcesConfig struct {
	Files []filesource.Config `yaml:"files"`
	NATS  []natssource.Config `yaml:"nats"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns a runnable configuration: in-memory storage, no-op
// extraction, metrics off.
func Default() *Config {
	return &Config{
		Storage:   StorageConfig{Backend: StorageMemory},
		Extractor: ExtractorConfig{Backend: ExtractorNoop},
		Pipeline:  PipelineConfig{Concurrency: 1},
		Metrics:   MetricsConfig{Port: 9090, Path: "/metrics"},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads, expands, and validates the config file at path. Fields the
// file omits keep their defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read "+path)
	}
	return Parse(raw)
}

// Parse builds a Config from YAML bytes.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()
	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "unmarshal yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints. It is called by Load and
// Parse; direct struct construction should call it too.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StorageSQLite, StorageBadger:
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown storage backend %q", errors.ErrInvalidConfig, c.Storage.Backend),
			"config", "Validate", "check storage backend")
	}

	switch c.Extractor.Backend {
	case ExtractorNoop, ExtractorRegex:
	case ExtractorNLP:
		if c.Extractor.ServiceURL == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "require extractor.service_url")
		}
	case ExtractorLLM:
		if c.Extractor.LLMModel == "" {
			return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Validate", "require extractor.llm_model")
		}
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown extractor backend %q", errors.ErrInvalidConfig, c.Extractor.Backend),
			"config", "Validate", "check extractor backend")
	}

	if c.Pipeline.Concurrency < 1 {
		c.Pipeline.Concurrency = 1
	}

	for i, fc := range c.Sources.Files {
		if err := fc.Validate(); err != nil {
			return errors.WrapInvalid(err, "config", "Validate", fmt.Sprintf("check sources.files[%d]", i))
		}
	}
	for i, nc := range c.Sources.NATS {
		if err := nc.Validate(); err != nil {
			return errors.WrapInvalid(err, "config", "Validate", fmt.Sprintf("check sources.nats[%d]", i))
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return errors.WrapInvalid(
				fmt.Errorf("%w: metrics port %d out of range", errors.ErrInvalidConfig, c.Metrics.Port),
				"config", "Validate", "check metrics port")
		}
		if c.Metrics.Path == "" {
			c.Metrics.Path = "/metrics"
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, c.Logging.Level),
			"config", "Validate", "check log level")
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: unknown log format %q", errors.ErrInvalidConfig, c.Logging.Format),
			"config", "Validate", "check log format")
	}
	return nil
}
