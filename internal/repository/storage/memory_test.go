package storage

import (
	"context"
	"testing"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBackend(t *testing.T) {
	clk := clock.NewMock()
	b := NewMemoryBackend(clk)
	defer b.Close()

	_, err := b.Connector("tiles")
	require.ErrorIs(t, err, ErrConnection)

	b.Put("tiles", "png|00|000|000|000|000|000|000", Record{Blob: []byte("img"), MimeType: "image/png"})
	conn, err := b.Connector("tiles")
	require.NoError(t, err)

	ctx := context.Background()

	t.Run("fetch_existing", func(t *testing.T) {
		rec, found, err := conn.Fetch(ctx, "png|00|000|000|000|000|000|000", ConsistencyOne)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("img"), rec.Blob)
		assert.Equal(t, "image/png", rec.MimeType)
	})

	t.Run("fetch_absent", func(t *testing.T) {
		_, found, err := conn.Fetch(ctx, "png|00|000|000|001|000|000|000", ConsistencyOne)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("touch_sets_millis", func(t *testing.T) {
		clk.Add(1500 * time.Millisecond)
		require.NoError(t, conn.TouchAccessTimestamp(ctx, "png|00|000|000|000|000|000|000", ConsistencyAny))

		rec, found, err := conn.Fetch(ctx, "png|00|000|000|000|000|000|000", ConsistencyOne)
		require.NoError(t, err)
		require.True(t, found)
		assert.EqualValues(t, 1500, rec.LastAccess)
	})

	t.Run("touch_without_image_is_not_a_tile", func(t *testing.T) {
		require.NoError(t, conn.TouchAccessTimestamp(ctx, "png|00|000|000|002|000|000|000", ConsistencyOne))
		_, found, err := conn.Fetch(ctx, "png|00|000|000|002|000|000|000", ConsistencyOne)
		require.NoError(t, err)
		assert.False(t, found)

		raw, ok := b.Get("tiles", "png|00|000|000|002|000|000|000")
		require.True(t, ok)
		assert.NotZero(t, raw.LastAccess)
	})

	t.Run("cancelled_context", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, time.Nanosecond)
		defer cancel()
		<-cctx.Done()

		_, _, err := conn.Fetch(cctx, "png|00|000|000|000|000|000|000", ConsistencyOne)
		assert.ErrorIs(t, err, ErrTimeout)
	})
}

func TestMemoryBackendCreateTable(t *testing.T) {
	b := NewMemoryBackend(nil)
	b.CreateTable("empty")

	conn, err := b.Connector("empty")
	require.NoError(t, err)
	_, found, err := conn.Fetch(context.Background(), "x", ConsistencyDefault)
	require.NoError(t, err)
	assert.False(t, found)
}

func BenchmarkMemoryFetch(b *testing.B) {
	backend := NewMemoryBackend(nil)
	for i := 0; i < 1000; i++ {
		backend.Put("tiles", EncodeKey("png", 1, int64(i), 0), Record{Blob: make([]byte, 1024)})
	}
	conn, err := backend.Connector("tiles")
	if err != nil {
		b.Fatalf("connector: %v", err)
	}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := conn.Fetch(ctx, EncodeKey("png", 1, int64(i%1000), 0), ConsistencyOne); err != nil {
			b.Fatalf("fetch: %v", err)
		}
	}
}
