// Package core wires configuration to concrete backends: persistent store,
// report archive, and logger.
package core

import (
	"context"
	"fmt"

	"virolink/internal/archive"
	archfs "virolink/internal/archive/fs"
	archmem "virolink/internal/archive/memory"
	archs3 "virolink/internal/archive/s3"
	"virolink/internal/config"
	"virolink/internal/infra/persistence/memory"
	"virolink/internal/infra/persistence/postgres"
	"virolink/internal/infra/persistence/sqlite"
	"virolink/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a storage backend from configuration.
func OpenPersistentStore(cfg config.StorageConfig, engine *domain.RulesEngine) (domain.PersistentStore, error) {
	switch StorageDriver(cfg.Driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageSQLite:
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}

// OpenArchive selects a report archive backend from configuration. The none
// driver returns a nil store; the coordinator treats that as archival off.
func OpenArchive(ctx context.Context, cfg config.ArchiveConfig) (archive.Store, error) {
	switch archive.Driver(cfg.Driver) {
	case "", archive.DriverNone:
		return nil, nil
	case archive.DriverMemory:
		return archmem.New(), nil
	case archive.DriverFilesystem:
		return archfs.New(cfg.FSRoot)
	case archive.DriverS3:
		return archs3.New(ctx, archs3.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			SessionToken:    cfg.S3.SessionToken,
		})
	default:
		return nil, fmt.Errorf("unknown archive driver %s", cfg.Driver)
	}
}
