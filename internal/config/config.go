// Package config loads runtime configuration from the environment, with an
// optional .env file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverGCS    = "gcs"
	DriverMemory = "memory"
)

// Config represents the application configuration.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string
	PeriodID  string

	Store      StoreConfig
	Extraction ExtractionConfig
	BigQuery   BigQueryConfig
	Notion     NotionConfig

	QueueWorkers int
}

// StoreConfig selects where period bundles are kept.
type StoreConfig struct {
	Driver string
	Dir    string
	Bucket string
	Prefix string
}

// ExtractionConfig configures the model calls.
type ExtractionConfig struct {
	Model      string
	DailyQuota int
}

// BigQueryConfig names the export dataset.
type BigQueryConfig struct {
	Project string
	Dataset string
}

// NotionConfig names the export database.
type NotionConfig struct {
	Token      string
	DatabaseID string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded when present; an explicit envPath must exist.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	quota, err := parseIntEnv("AI_DAILY_QUOTA", 50)
	if err != nil {
		return nil, err
	}
	workers, err := parseIntEnv("QUEUE_WORKERS", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "console"),
		PeriodID:  getEnvOrDefault("PERIOD_ID", "default"),
		Store: StoreConfig{
			Driver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverFile)),
			Dir:    getEnvOrDefault("STORE_DIR", "./data"),
			Bucket: os.Getenv("GCS_BUCKET"),
			Prefix: getEnvOrDefault("GCS_PREFIX", "periods/"),
		},
		Extraction: ExtractionConfig{
			Model:      getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
			DailyQuota: quota,
		},
		BigQuery: BigQueryConfig{
			Project: os.Getenv("BIGQUERY_PROJECT"),
			Dataset: getEnvOrDefault("BIGQUERY_DATASET", "finance"),
		},
		Notion: NotionConfig{
			Token:      os.Getenv("NOTION_TOKEN"),
			DatabaseID: os.Getenv("NOTION_DATABASE_ID"),
		},
		QueueWorkers: workers,
	}

	return cfg, nil
}

// Validate checks the store driver and that every named key is set. Keys
// use the environment variable names.
func (c *Config) Validate(required ...string) error {
	switch c.Store.Driver {
	case DriverFile, DriverMemory:
	case DriverGCS:
		if c.Store.Bucket == "" {
			required = append(required, "GCS_BUCKET")
		}
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want file, gcs or memory", c.Store.Driver)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, key := range required {
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.value(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}
	return nil
}

func (c *Config) value(key string) string {
	switch key {
	case "PORT":
		return c.Port
	case "PERIOD_ID":
		return c.PeriodID
	case "STORE_DIR":
		return c.Store.Dir
	case "GCS_BUCKET":
		return c.Store.Bucket
	case "GEMINI_MODEL":
		return c.Extraction.Model
	case "BIGQUERY_PROJECT":
		return c.BigQuery.Project
	case "BIGQUERY_DATASET":
		return c.BigQuery.Dataset
	case "NOTION_TOKEN":
		return c.Notion.Token
	case "NOTION_DATABASE_ID":
		return c.Notion.DatabaseID
	}
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}
	return parsed, nil
}
