package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteBackend(t *testing.T) (*SQLiteBackend, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	b, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "tiles.db"), clk, logger.NoOp())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b, clk
}

func TestSQLiteBackend(t *testing.T) {
	b, clk := setupSQLiteBackend(t)
	_, err := b.db.Exec(`INSERT INTO tiles (key, img, mime) VALUES (?, ?, ?), (?, NULL, NULL)`,
		"png|02|000|000|003|000|000|001", []byte{1, 2, 3}, "image/png",
		"png|02|000|000|004|000|000|001")
	require.NoError(t, err)

	conn, err := b.Connector(DefaultTable)
	require.NoError(t, err)
	ctx := context.Background()

	rec, found, err := conn.Fetch(ctx, "png|02|000|000|003|000|000|001", ConsistencyOne)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte{1, 2, 3}, rec.Blob)
	assert.Equal(t, "image/png", rec.MimeType)
	assert.Zero(t, rec.LastAccess)

	_, found, err = conn.Fetch(ctx, "png|02|000|000|004|000|000|001", ConsistencyOne)
	require.NoError(t, err)
	assert.False(t, found, "row without image")

	_, found, err = conn.Fetch(ctx, "png|02|000|000|005|000|000|001", ConsistencyOne)
	require.NoError(t, err)
	assert.False(t, found)

	clk.Add(3 * time.Second)
	require.NoError(t, conn.TouchAccessTimestamp(ctx, "png|02|000|000|003|000|000|001", ConsistencyOne))
	rec, _, err = conn.Fetch(ctx, "png|02|000|000|003|000|000|001", ConsistencyOne)
	require.NoError(t, err)
	assert.EqualValues(t, 3000, rec.LastAccess)
}

func TestSQLiteBackendTables(t *testing.T) {
	b, _ := setupSQLiteBackend(t)

	_, err := b.Connector("missing")
	assert.ErrorIs(t, err, ErrConnection)

	_, err = b.Connector("tiles; DROP TABLE tiles")
	assert.ErrorIs(t, err, ErrConnection)

	_, err = b.db.Exec(`CREATE TABLE aerial (key TEXT PRIMARY KEY, img BLOB, lru INTEGER, mime TEXT)`)
	require.NoError(t, err)
	_, err = b.Connector("aerial")
	assert.NoError(t, err)
}

func TestSQLiteBackendClosed(t *testing.T) {
	b, _ := setupSQLiteBackend(t)
	conn, err := b.Connector(DefaultTable)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, _, err = conn.Fetch(context.Background(), "k", ConsistencyOne)
	assert.ErrorIs(t, err, ErrStorage)
}
