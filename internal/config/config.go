// Package config loads virolink configuration from an optional YAML file with
// environment variable overrides. Secrets come from the environment only.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for virolink.
// Environment variables always override YAML values for fields that support
// both.
type Config struct {
	// Storage selects and configures the persistent store backend.
	Storage StorageConfig `yaml:"storage"`

	// Archive selects and configures the import-report archive.
	Archive ArchiveConfig `yaml:"archive"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log"`

	// Metrics configures the Prometheus listener used by long-running imports.
	Metrics MetricsConfig `yaml:"metrics"`

	// Conflict tunes the per-field merge policies.
	Conflict ConflictConfig `yaml:"conflict"`
}

// ConflictConfig overrides merge policies for individual fields.
type ConflictConfig struct {
	// FieldPolicies maps "entity.field" (for example "host.sex") to one of
	// overwrite, prefer_existing, prefer_non_null, flag_only.
	FieldPolicies map[string]string `yaml:"field_policies"`
}

// StorageConfig holds persistent store settings.
type StorageConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver     string `yaml:"driver" env:"VIROLINK_STORAGE_DRIVER" env-default:"sqlite"`
	SQLitePath string `yaml:"sqlite_path" env:"VIROLINK_SQLITE_PATH" env-default:"virolink.db"`
	// PostgresDSN is a secret; environment only.
	PostgresDSN string `yaml:"-" env:"VIROLINK_POSTGRES_DSN"`
}

// ArchiveConfig holds report archive settings.
type ArchiveConfig struct {
	// Driver is one of none, memory, fs, s3.
	Driver string   `yaml:"driver" env:"VIROLINK_ARCHIVE_DRIVER" env-default:"none"`
	FSRoot string   `yaml:"fs_root" env:"VIROLINK_ARCHIVE_FS_ROOT" env-default:"archive"`
	S3     S3Config `yaml:"s3"`
}

// S3Config holds the object store settings for the s3 archive driver.
// Credentials are secrets; environment only.
type S3Config struct {
	Bucket          string `yaml:"bucket" env:"VIROLINK_ARCHIVE_S3_BUCKET"`
	Region          string `yaml:"region" env:"VIROLINK_ARCHIVE_S3_REGION" env-default:"us-east-1"`
	Endpoint        string `yaml:"endpoint" env:"VIROLINK_ARCHIVE_S3_ENDPOINT"`
	PathStyle       bool   `yaml:"path_style" env:"VIROLINK_ARCHIVE_S3_PATH_STYLE" env-default:"false"`
	AccessKeyID     string `yaml:"-" env:"VIROLINK_ARCHIVE_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"VIROLINK_ARCHIVE_S3_SECRET_ACCESS_KEY"`
	SessionToken    string `yaml:"-" env:"VIROLINK_ARCHIVE_S3_SESSION_TOKEN"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"VIROLINK_LOG_LEVEL" env-default:"info"`
	// Format is one of json, console.
	Format string `yaml:"format" env:"VIROLINK_LOG_FORMAT" env-default:"console"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"VIROLINK_METRICS_ENABLED" env-default:"false"`
	Addr    string `yaml:"addr" env:"VIROLINK_METRICS_ADDR" env-default:":9090"`
}

// Load reads configuration from the given YAML file with environment
// overrides. A missing file is not an error; the environment alone then
// supplies everything.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = "virolink.yaml"
	}
	err := cleanenv.ReadConfig(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		err = cleanenv.ReadEnv(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Archive.Driver {
	case "none", "memory", "fs", "s3":
	default:
		return fmt.Errorf("unknown archive driver %q", c.Archive.Driver)
	}
	if c.Archive.Driver == "s3" && c.Archive.S3.Bucket == "" {
		return fmt.Errorf("archive driver s3 requires a bucket")
	}
	return nil
}
