// Package config provides configuration management for disambig.
// It loads settings from environment variables with the DISAMBIG_ prefix,
// provides sensible defaults for all configuration options, and can overlay
// a YAML file on top of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for disambig.
type Config struct {
	Resolution ResolutionConfig `yaml:"resolution"`
	LLM        LLMConfig        `yaml:"llm"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`
}

// ResolutionConfig controls promotion thresholds and the resolution workers.
type ResolutionConfig struct {
	ClearWinnerScore  float64       `yaml:"clear_winner_score"`  // Score that wins outright (default: 5)
	LowScoreCutoff    float64       `yaml:"low_score_cutoff"`    // Candidates below are dropped (default: 2)
	Workers           int           `yaml:"workers"`             // Parallel resolutions (default: 4)
	MaxRetries        int           `yaml:"max_retries"`         // Retries per draft on transient errors (default: 2)
	RequestsPerSecond float64       `yaml:"requests_per_second"` // Search/rerank rate limit (default: 5)
	Burst             int           `yaml:"burst"`               // Rate limiter burst (default: 5)
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`    // Engine drain timeout (default: 30s)
}

// LLMConfig contains LLM provider configuration for the reranker.
type LLMConfig struct {
	Provider string        `yaml:"provider"` // ollama, anthropic, openai or none (default: none)
	BaseURL  string        `yaml:"base_url"` // API base URL; empty selects the provider default
	Model    string        `yaml:"model"`    // Model name; empty selects the provider default
	APIKey   string        `yaml:"api_key"`  // Anthropic or OpenAI API key
	Timeout  time.Duration `yaml:"timeout"`  // Per request timeout (default: 60s)
}

// StorageConfig contains persistence configuration.
type StorageConfig struct {
	Engine      string `yaml:"engine"`       // memory, sqlite or postgres (default: sqlite)
	DataPath    string `yaml:"data_path"`    // Directory of the sqlite file (default: ./data)
	PostgresDSN string `yaml:"postgres_dsn"` // Connection string when engine is postgres
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Development bool   `yaml:"development"` // Console encoder instead of JSON (default: false)
}

// CatalogConfig points at the static graph catalog used for search.
type CatalogConfig struct {
	Path string `yaml:"path"` // YAML catalog file; empty disables the catalog
}

// Valid values of the enumerated settings.
var (
	validProviders = []string{"none", "ollama", "anthropic", "openai"}
	validEngines   = []string{"memory", "sqlite", "postgres"}
	validLevels    = []string{"debug", "info", "warn", "error"}
)

// Load loads configuration from environment variables with sensible defaults.
// All environment variables use the DISAMBIG_ prefix.
func Load() (*Config, error) {
	cfg := buildBaseConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the environment configuration and overlays the YAML file at
// path. Keys absent from the file keep their environment or default value.
func LoadFile(path string) (*Config, error) {
	cfg := buildBaseConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects out of range or unknown settings.
func (c *Config) Validate() error {
	r := c.Resolution
	if r.LowScoreCutoff < 0 || r.LowScoreCutoff > 5 {
		return fmt.Errorf("config: low_score_cutoff must be within 0..5, got %v", r.LowScoreCutoff)
	}
	if r.ClearWinnerScore < r.LowScoreCutoff || r.ClearWinnerScore > 5 {
		return fmt.Errorf("config: clear_winner_score must be within low_score_cutoff..5, got %v", r.ClearWinnerScore)
	}
	if r.Workers <= 0 {
		return errors.New("config: workers must be greater than 0")
	}
	if r.MaxRetries < 0 {
		return errors.New("config: max_retries must be non-negative")
	}
	if r.RequestsPerSecond <= 0 {
		return errors.New("config: requests_per_second must be greater than 0")
	}
	if r.Burst <= 0 {
		return errors.New("config: burst must be greater than 0")
	}
	if r.ShutdownTimeout <= 0 {
		return errors.New("config: shutdown_timeout must be greater than 0")
	}

	if !oneOf(c.LLM.Provider, validProviders) {
		return fmt.Errorf("config: unknown llm provider %q", c.LLM.Provider)
	}
	if (c.LLM.Provider == "anthropic" || c.LLM.Provider == "openai") && c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm provider %s requires an api key", c.LLM.Provider)
	}

	if !oneOf(c.Storage.Engine, validEngines) {
		return fmt.Errorf("config: unknown storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return errors.New("config: storage engine postgres requires postgres_dsn")
	}

	if !oneOf(c.Logging.Level, validLevels) {
		return fmt.Errorf("config: unknown log level %q", c.Logging.Level)
	}
	return nil
}

// SQLitePath returns the database file used by the sqlite engine.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.Storage.DataPath, "disambig.db")
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Resolution: ResolutionConfig{
			ClearWinnerScore:  getEnvFloat("DISAMBIG_CLEAR_WINNER_SCORE", 5),
			LowScoreCutoff:    getEnvFloat("DISAMBIG_LOW_SCORE_CUTOFF", 2),
			Workers:           getEnvInt("DISAMBIG_WORKERS", 4),
			MaxRetries:        getEnvInt("DISAMBIG_MAX_RETRIES", 2),
			RequestsPerSecond: getEnvFloat("DISAMBIG_REQUESTS_PER_SECOND", 5),
			Burst:             getEnvInt("DISAMBIG_BURST", 5),
			ShutdownTimeout:   getEnvDuration("DISAMBIG_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			Provider: getEnv("DISAMBIG_LLM_PROVIDER", "none"),
			BaseURL:  getEnv("DISAMBIG_LLM_BASE_URL", ""),
			Model:    getEnv("DISAMBIG_LLM_MODEL", ""),
			APIKey:   getEnv("DISAMBIG_LLM_API_KEY", ""),
			Timeout:  getEnvDuration("DISAMBIG_LLM_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Engine:      getEnv("DISAMBIG_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("DISAMBIG_DATA_PATH", "./data"),
			PostgresDSN: getEnv("DISAMBIG_POSTGRES_DSN", ""),
		},
		Logging: LoggingConfig{
			Level:       getEnv("DISAMBIG_LOG_LEVEL", "info"),
			Development: getEnvBool("DISAMBIG_LOG_DEVELOPMENT", false),
		},
		Catalog: CatalogConfig{
			Path: getEnv("DISAMBIG_CATALOG_PATH", ""),
		},
	}
}

func oneOf(v string, valid []string) bool {
	for _, s := range valid {
		if v == s {
			return true
		}
	}
	return false
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat is getEnvInt for floating point settings.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration parses values such as "30s" or "2m".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultValue
}
