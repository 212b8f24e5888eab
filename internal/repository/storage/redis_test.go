package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisBackend(t *testing.T) (*miniredis.Miniredis, *RedisBackend, *clock.Mock) {
	t.Helper()
	s := miniredis.RunT(t)
	clk := clock.NewMock()

	b, err := NewRedisBackend(RedisConfig{Addr: s.Addr(), KeyPrefix: "tilestore:", Clock: clk})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	return s, b, clk
}

func TestRedisBackend(t *testing.T) {
	t.Run("fetch_no_exist", func(t *testing.T) {
		_, b, _ := setupRedisBackend(t)
		conn, err := b.Connector("basemap")
		require.NoError(t, err)

		_, found, err := conn.Fetch(context.Background(), "png|00|000|000|000|000|000|000", ConsistencyOne)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("fetch_existing", func(t *testing.T) {
		s, b, _ := setupRedisBackend(t)
		s.HSet("tilestore:basemap:png|01|000|000|001|000|000|000", "img", "\x89PNG", "lru", "42", "mime", "image/png")

		conn, err := b.Connector("basemap")
		require.NoError(t, err)

		rec, found, err := conn.Fetch(context.Background(), "png|01|000|000|001|000|000|000", ConsistencyQuorum)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("\x89PNG"), rec.Blob)
		assert.EqualValues(t, 42, rec.LastAccess)
		assert.Equal(t, "image/png", rec.MimeType)
	})

	t.Run("touch_then_fetch", func(t *testing.T) {
		s, b, clk := setupRedisBackend(t)
		s.HSet("tilestore:basemap:k", "img", "data")
		clk.Add(2 * time.Second)

		conn, err := b.Connector("basemap")
		require.NoError(t, err)
		require.NoError(t, conn.TouchAccessTimestamp(context.Background(), "k", ConsistencyAny))

		assert.Equal(t, "2000", s.HGet("tilestore:basemap:k", "lru"))
		rec, found, err := conn.Fetch(context.Background(), "k", ConsistencyOne)
		require.NoError(t, err)
		require.True(t, found)
		assert.EqualValues(t, 2000, rec.LastAccess)
	})

	t.Run("touched_row_without_image", func(t *testing.T) {
		_, b, _ := setupRedisBackend(t)
		conn, err := b.Connector("basemap")
		require.NoError(t, err)

		require.NoError(t, conn.TouchAccessTimestamp(context.Background(), "k", ConsistencyOne))
		_, found, err := conn.Fetch(context.Background(), "k", ConsistencyOne)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("malformed_lru", func(t *testing.T) {
		s, b, _ := setupRedisBackend(t)
		s.HSet("tilestore:basemap:k", "img", "data", "lru", "yesterday")
		conn, err := b.Connector("basemap")
		require.NoError(t, err)

		_, _, err = conn.Fetch(context.Background(), "k", ConsistencyOne)
		assert.ErrorIs(t, err, ErrStorage)
	})

	t.Run("server_gone", func(t *testing.T) {
		s, b, _ := setupRedisBackend(t)
		conn, err := b.Connector("basemap")
		require.NoError(t, err)
		s.Close()

		_, _, err = conn.Fetch(context.Background(), "k", ConsistencyOne)
		assert.ErrorIs(t, err, ErrStorage)
	})

	t.Run("empty_table", func(t *testing.T) {
		_, b, _ := setupRedisBackend(t)
		_, err := b.Connector("")
		assert.ErrorIs(t, err, ErrConnection)
	})
}

func TestRedisBackendUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()

	_, err := NewRedisBackend(RedisConfig{Addr: addr, DialTimeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, ErrConnection)
}
