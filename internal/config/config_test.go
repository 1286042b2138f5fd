package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Archive.Driver != "none" {
		t.Fatalf("archive driver = %q, want none", cfg.Archive.Driver)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "console" {
		t.Fatalf("log defaults = %q/%q", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Metrics.Enabled {
		t.Fatal("metrics enabled by default")
	}
}

func TestLoadReadsFileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virolink.yaml")
	yaml := "storage:\n  driver: memory\nlog:\n  level: warn\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("VIROLINK_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("storage driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log level = %q, env should override the file", cfg.Log.Level)
	}
}

func TestLoadRejectsUnknownDrivers(t *testing.T) {
	t.Setenv("VIROLINK_STORAGE_DRIVER", "etcd")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
	t.Setenv("VIROLINK_STORAGE_DRIVER", "memory")
	t.Setenv("VIROLINK_ARCHIVE_DRIVER", "tape")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for unknown archive driver")
	}
}

func TestLoadRequiresS3Bucket(t *testing.T) {
	t.Setenv("VIROLINK_ARCHIVE_DRIVER", "s3")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for s3 archive without a bucket")
	}
	t.Setenv("VIROLINK_ARCHIVE_S3_BUCKET", "virolink-reports")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Archive.S3.Region != "us-east-1" {
		t.Fatalf("s3 region = %q, want default", cfg.Archive.S3.Region)
	}
}
