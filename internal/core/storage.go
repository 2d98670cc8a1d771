package core

import (
	"context"
	"fmt"

	"envirotrack/internal/config"
	"envirotrack/internal/infra/persistence/file"
	"envirotrack/internal/infra/persistence/memory"
	"envirotrack/internal/infra/persistence/postgres"
	"envirotrack/internal/infra/persistence/redis"
	"envirotrack/internal/infra/persistence/sqlite"
	"envirotrack/pkg/domain"
)

// StorageDriver identifies a concrete key-value backend.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageFile     StorageDriver = "file"     // one JSON document per key
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
	StorageRedis    StorageDriver = "redis"    // Redis server
)

// KVStore aliases domain.KVStore.
type KVStore = domain.KVStore

// OpenKVStore selects a backend by cfg.Driver. Defaults to sqlite when unset.
func OpenKVStore(ctx context.Context, cfg config.StorageConfig) (KVStore, error) {
	driver := StorageDriver(cfg.Driver)
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageFile:
		return opened(file.NewStore(cfg.FileDir))
	case StorageSQLite:
		return opened(sqlite.NewStore(cfg.SQLitePath))
	case StoragePostgres:
		return opened(postgres.NewStore(ctx, cfg.PostgresDSN))
	case StorageRedis:
		return opened(redis.NewStore(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		}))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}

// opened keeps a failed constructor from yielding a non-nil interface
// around a nil pointer.
func opened[T KVStore](store T, err error) (KVStore, error) {
	if err != nil {
		return nil, err
	}
	return store, nil
}
