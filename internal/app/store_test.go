package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/catalog"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage/mocks"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/config"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testCatalog = `
tileMatrixSets:
  - identifier: s
    crs: EPSG:3857
    tileMatrices:
      - {identifier: "0", matrixWidth: 1, matrixHeight: 1, resolution: 1}
      - {identifier: "1", matrixWidth: 2, matrixHeight: 2, resolution: 1}
datasets:
  - {identifier: basemap, tileMatrixSet: s, mimeType: image/png, accessTimestamp: true}
  - {identifier: aerial, tileMatrixSet: s, mimeType: image/jpeg, table: aerial, readConsistency: ALL}
`

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	return &config.Config{
		Storage: config.Storage{Backend: backend, ReadConsistency: "ONE", WriteConsistency: "ANY"},
		SQLite:  config.SQLite{Path: filepath.Join(t.TempDir(), "tiles.db")},
	}
}

func TestBuildTileStoreMemory(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	cfg := testConfig(t, config.BackendMemory)

	backend, err := OpenBackend(cfg, cat, logger.NoOp())
	require.NoError(t, err)
	defer backend.Close()

	mem := backend.(*storage.MemoryBackend)
	mem.Put("aerial", storage.EncodeKey("jpeg", 1, 0, 1), storage.Record{Blob: []byte("a")})

	store, err := BuildTileStore(cat, cfg.Storage, backend, nil, logger.NoOp())
	require.NoError(t, err)

	tile, found, err := store.Resolve(context.Background(), "aerial", "1", 0, 0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("a"), tile.Data)
	assert.Equal(t, "image/jpeg", tile.MimeType)

	assert.Len(t, store.Datasets(), 2)
}

func TestBuildTileStoreWithoutBackend(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	store, err := BuildTileStore(cat, config.Storage{}, nil, nil, logger.NoOp())
	require.NoError(t, err)

	ds, ok := store.Dataset("basemap")
	require.True(t, ok)
	key, ok := ds.KeyFor("1", 1, 0)
	require.True(t, ok)
	assert.Equal(t, storage.Key("png|01|000|000|001|000|000|001"), key)
}

func TestBuildTileStoreMissingTable(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	cfg := testConfig(t, config.BackendSQLite)

	// the migrations only create the default table
	backend, err := OpenBackend(cfg, cat, logger.NoOp())
	require.NoError(t, err)
	defer backend.Close()

	_, err = BuildTileStore(cat, cfg.Storage, backend, nil, logger.NoOp())
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrConnection)
	assert.Contains(t, err.Error(), `dataset "aerial"`)
}

func TestOpenBackendRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, config.BackendRedis)
	cfg.Redis.Addr = mr.Addr()

	backend, err := OpenBackend(cfg, &catalog.Catalog{}, logger.NoOp())
	require.NoError(t, err)
	defer backend.Close()
	assert.Equal(t, "redis", backend.Name())

	mr.Close()
	_, err = OpenBackend(cfg, &catalog.Catalog{}, logger.NoOp())
	assert.ErrorIs(t, err, storage.ErrConnection)
}

func TestOpenBackendUnknown(t *testing.T) {
	_, err := OpenBackend(testConfig(t, "hbase"), &catalog.Catalog{}, logger.NoOp())
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestBuildTileStorePassesTimestampOption(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)
	backend.EXPECT().Connector("tiles", gomock.Any()).Return(mocks.NewMockConnector(ctrl), nil).Times(1)
	backend.EXPECT().Connector("aerial", gomock.Any()).Return(mocks.NewMockConnector(ctrl), nil).Times(1)

	_, err = BuildTileStore(cat, config.Storage{}, backend, nil, logger.NoOp())
	require.NoError(t, err)
}
