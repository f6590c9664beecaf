package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var validBackends = []string{"csv", "xlsx", "sqlite", "mysql", "sheets"}

type Config struct {
	// HTTP Server
	Port string `yaml:"port"`

	// Data source
	DataBackend        string `yaml:"dataBackend"`
	TransactionsSource string `yaml:"transactionsSource"`
	SQLiteDBPath       string `yaml:"sqliteDBPath"`

	// Google Sheets
	SheetsRange              string `yaml:"sheetsRange"`
	GoogleServiceAccountFile string `yaml:"googleServiceAccountFile"`
	GoogleServiceAccountJSON string `yaml:"googleServiceAccountJSON"`

	// AMQP (optional)
	AMQPURL      string `yaml:"amqpURL"`
	AMQPExchange string `yaml:"amqpExchange"`
	AMQPQueue    string `yaml:"amqpQueue"`

	// Filtering
	EmptySelectionMatchesAll bool `yaml:"emptySelectionMatchesAll"`

	// Dataset cache
	DatasetCacheSize int           `yaml:"datasetCacheSize"`
	DatasetCacheTTL  time.Duration `yaml:"datasetCacheTTL"` // 0 keeps datasets until invalidated

	// Manual reloads allowed per client per minute
	ReloadRatePerMinute int `yaml:"reloadRatePerMinute"`

	// Logging
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`
}

// Load builds the configuration from defaults, the optional YAML file named
// by CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Port:                "8081",
		DataBackend:         "csv",
		SQLiteDBPath:        "./data/retaildash.db",
		SheetsRange:         "A:Z",
		AMQPExchange:        "retaildash",
		AMQPQueue:           "dataset_reloaded",
		DatasetCacheSize:    8,
		ReloadRatePerMinute: 6,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataBackend = getEnv("DATA_BACKEND", cfg.DataBackend)
	cfg.TransactionsSource = getEnv("TRANSACTIONS_SOURCE", cfg.TransactionsSource)
	cfg.SQLiteDBPath = getEnv("SQLITE_DB_PATH", cfg.SQLiteDBPath)

	cfg.SheetsRange = getEnv("SHEETS_RANGE", cfg.SheetsRange)
	cfg.GoogleServiceAccountFile = getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", cfg.GoogleServiceAccountFile)
	cfg.GoogleServiceAccountJSON = getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.GoogleServiceAccountJSON)

	cfg.AMQPURL = getEnv("AMQP_URL", cfg.AMQPURL)
	cfg.AMQPExchange = getEnv("AMQP_EXCHANGE", cfg.AMQPExchange)
	cfg.AMQPQueue = getEnv("AMQP_QUEUE", cfg.AMQPQueue)

	cfg.EmptySelectionMatchesAll = getEnvBool("EMPTY_SELECTION_MATCHES_ALL", cfg.EmptySelectionMatchesAll)

	cfg.DatasetCacheSize = getEnvInt("DATASET_CACHE_SIZE", cfg.DatasetCacheSize)
	cfg.DatasetCacheTTL = getEnvDuration("DATASET_CACHE_TTL", cfg.DatasetCacheTTL)
	cfg.ReloadRatePerMinute = getEnvInt("RELOAD_RATE_PER_MINUTE", cfg.ReloadRatePerMinute)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
}

// Source is the location the server reads transactions from. The sqlite
// backend falls back to the importer's snapshot path.
func (c *Config) Source() string {
	if c.TransactionsSource == "" && c.DataBackend == "sqlite" {
		return c.SQLiteDBPath
	}
	return c.TransactionsSource
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if strings.TrimSpace(c.Source()) == "" {
		errors = append(errors, "TRANSACTIONS_SOURCE is required")
	} else if c.DataBackend == "csv" || c.DataBackend == "xlsx" {
		if _, err := os.Stat(c.Source()); err != nil {
			errors = append(errors, fmt.Sprintf("transactions file '%s' is not readable: %v", c.Source(), err))
		}
	}

	if c.DataBackend == "sheets" {
		if c.GoogleServiceAccountFile == "" && c.GoogleServiceAccountJSON == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DatasetCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid dataset cache size %d: must be at least 1", c.DatasetCacheSize))
	}
	if c.DatasetCacheTTL < 0 || (c.DatasetCacheTTL > 0 && c.DatasetCacheTTL < time.Second) {
		errors = append(errors, fmt.Sprintf("invalid dataset cache TTL %v: must be 0 (no expiry) or at least 1 second", c.DatasetCacheTTL))
	}
	if c.ReloadRatePerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid reload rate %d: must be at least 1 per minute", c.ReloadRatePerMinute))
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateImporter checks the settings used by the snapshot importer.
func (c *Config) ValidateImporter() error {
	var errors []string
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLITE_DB_PATH is required")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
		}
	}
	if c.AMQPURL != "" && (c.AMQPExchange == "" || c.AMQPQueue == "") {
		errors = append(errors, "AMQP exchange and queue are required when AMQP URL is provided")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
