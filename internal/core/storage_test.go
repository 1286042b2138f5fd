package core

import (
	"context"
	"path/filepath"
	"testing"

	"virolink/internal/archive"
	"virolink/internal/config"
	"virolink/pkg/domain"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(config.StorageConfig{Driver: "memory"}, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("OpenPersistentStore: %v", err)
	}
	if store == nil {
		t.Fatal("expected store")
	}
}

func TestOpenPersistentStoreSQLite(t *testing.T) {
	cfg := config.StorageConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "state.db"),
	}
	store, err := OpenPersistentStore(cfg, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	if store == nil {
		t.Fatal("expected store")
	}
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	if _, err := OpenPersistentStore(config.StorageConfig{Driver: "etcd"}, domain.NewRulesEngine()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenArchiveDrivers(t *testing.T) {
	ctx := context.Background()

	store, err := OpenArchive(ctx, config.ArchiveConfig{Driver: "none"})
	if err != nil || store != nil {
		t.Fatalf("none driver = (%v, %v), want (nil, nil)", store, err)
	}

	store, err = OpenArchive(ctx, config.ArchiveConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory driver: %v", err)
	}
	if store.Driver() != archive.DriverMemory {
		t.Fatalf("driver = %s, want memory", store.Driver())
	}

	store, err = OpenArchive(ctx, config.ArchiveConfig{Driver: "fs", FSRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("fs driver: %v", err)
	}
	if store.Driver() != archive.DriverFilesystem {
		t.Fatalf("driver = %s, want fs", store.Driver())
	}

	if _, err := OpenArchive(ctx, config.ArchiveConfig{Driver: "tape"}); err == nil {
		t.Fatal("expected error for unknown archive driver")
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger")
	}
	if _, err := NewLogger(config.LogConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for bad level")
	}
	if _, err := NewLogger(config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Fatal("expected error for bad format")
	}
}
