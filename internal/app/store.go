package app

import (
	"fmt"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/catalog"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/usecase"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
)

// OpenBackend connects to the configured store. The in-memory backend gets
// an empty table per catalog dataset.
func OpenBackend(cfg *config.Config, cat *catalog.Catalog, l logger.Logger) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case config.BackendCassandra:
		downgrade, err := cfg.Cassandra.Downgrade()
		if err != nil {
			return nil, err
		}
		return storage.NewCassandraBackend(storage.CassandraConfig{
			Hosts:               cfg.Cassandra.Hosts,
			Port:                cfg.Cassandra.Port,
			Keyspace:            cfg.Cassandra.Keyspace,
			Username:            cfg.Cassandra.Username,
			Password:            cfg.Cassandra.Password,
			Timeout:             cfg.Cassandra.Timeout,
			ConnectTimeout:      cfg.Cassandra.ConnectTimeout,
			NumConns:            cfg.Cassandra.NumConns,
			LoadBalancing:       cfg.Cassandra.LoadBalancing,
			LocalDC:             cfg.Cassandra.LocalDC,
			RetryPolicy:         cfg.Cassandra.RetryPolicy,
			RetryNum:            cfg.Cassandra.RetryNum,
			DowngradeLevels:     downgrade,
			ReconnectInterval:   cfg.Cassandra.ReconnectInterval,
			ReconnectMaxRetries: cfg.Cassandra.ReconnectMaxRetries,
			Logger:              l,
		})
	case config.BackendRedis:
		return storage.NewRedisBackend(storage.RedisConfig{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			ReadTimeout: cfg.Storage.FetchTimeout,
		})
	case config.BackendSQLite:
		return storage.NewSQLiteBackend(cfg.SQLite.Path, nil, l)
	case config.BackendMemory:
		b := storage.NewMemoryBackend(nil)
		for _, ds := range cat.Datasets {
			b.CreateTable(ds.Table)
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// BuildTileStore wires one lookup use case per catalog dataset. A nil
// backend builds use cases that can only encode keys.
func BuildTileStore(cat *catalog.Catalog, st config.Storage, backend storage.Backend, toucher *usecase.AccessToucher, l logger.Logger) (*usecase.TileStore, error) {
	read, err := st.Read()
	if err != nil {
		return nil, err
	}
	write, err := st.Write()
	if err != nil {
		return nil, err
	}

	lookups := make([]*usecase.TileLookupUseCase, 0, len(cat.Datasets))
	for _, ds := range cat.Datasets {
		dsCfg := usecase.DatasetConfig{
			Identifier:       ds.Identifier,
			MimeType:         ds.MimeType,
			AccessTimestamp:  ds.AccessTimestamp,
			ReadConsistency:  read,
			WriteConsistency: write,
			FetchTimeout:     st.FetchTimeout,
		}
		if ds.ReadConsistency != nil {
			dsCfg.ReadConsistency = *ds.ReadConsistency
		}
		if ds.WriteConsistency != nil {
			dsCfg.WriteConsistency = *ds.WriteConsistency
		}

		var conn storage.Connector
		if backend != nil {
			conn, err = backend.Connector(ds.Table, storage.WithAccessTimestamp(ds.AccessTimestamp))
			if err != nil {
				return nil, fmt.Errorf("dataset %q: %w", ds.Identifier, err)
			}
		}

		l.Info("dataset configured",
			"dataset", ds.Identifier,
			"table", ds.Table,
			"tile_matrix_set", ds.Registry.Set().Identifier,
			"read_consistency", dsCfg.ReadConsistency,
			"write_consistency", dsCfg.WriteConsistency,
			"access_timestamp", ds.AccessTimestamp,
		)

		lookups = append(lookups, usecase.NewTileLookupUseCase(dsCfg, ds.Registry, conn, toucher, l))
	}

	return usecase.NewTileStore(lookups...)
}
