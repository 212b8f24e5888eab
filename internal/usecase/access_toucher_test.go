package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage/mocks"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAccessToucherDrainsOnClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	conn.EXPECT().TouchAccessTimestamp(gomock.Any(), gomock.Any(), storage.ConsistencyQuorum).Return(nil).Times(10)

	toucher := NewAccessToucher(AccessToucherConfig{Workers: 2, QueueSize: 10}, logger.NoOp())
	for i := 0; i < 10; i++ {
		require.True(t, toucher.Enqueue("ds", conn, storage.Key("k"), storage.ConsistencyQuorum))
	}
	toucher.Close()
}

func TestAccessToucherRejectsAfterClose(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)

	toucher := NewAccessToucher(AccessToucherConfig{}, logger.NoOp())
	toucher.Close()
	toucher.Close()

	assert.False(t, toucher.Enqueue("ds", conn, "k", storage.ConsistencyOne))
}

func TestAccessToucherDropsWhenFull(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)

	release := make(chan struct{})
	started := make(chan struct{})
	conn.EXPECT().TouchAccessTimestamp(gomock.Any(), storage.Key("first"), gomock.Any()).
		DoAndReturn(func(context.Context, storage.Key, storage.Consistency) error {
			close(started)
			<-release
			return nil
		})
	conn.EXPECT().TouchAccessTimestamp(gomock.Any(), storage.Key("queued"), gomock.Any()).Return(nil)

	toucher := NewAccessToucher(AccessToucherConfig{Workers: 1, QueueSize: 1}, logger.NoOp())
	require.True(t, toucher.Enqueue("ds", conn, "first", storage.ConsistencyOne))
	<-started
	require.True(t, toucher.Enqueue("ds", conn, "queued", storage.ConsistencyOne))
	assert.False(t, toucher.Enqueue("ds", conn, "dropped", storage.ConsistencyOne))

	close(release)
	toucher.Close()
}

func TestAccessToucherRateLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	conn.EXPECT().TouchAccessTimestamp(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// a bucket of one token refilled once a second
	toucher := NewAccessToucher(AccessToucherConfig{Workers: 1, QueueSize: 10, Rate: 1}, logger.NoOp())
	assert.True(t, toucher.Enqueue("ds", conn, "a", storage.ConsistencyOne))
	assert.False(t, toucher.Enqueue("ds", conn, "b", storage.ConsistencyOne))
	toucher.Close()
}

func TestAccessToucherLogsFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mocks.NewMockConnector(ctrl)
	conn.EXPECT().TouchAccessTimestamp(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("unavailable"))

	core, logs := observer.New(zapcore.WarnLevel)
	toucher := NewAccessToucher(AccessToucherConfig{Workers: 1, QueueSize: 1}, logger.NewZapLoggerFrom(zap.New(core)))
	require.True(t, toucher.Enqueue("basemap", conn, "k", storage.ConsistencyOne))
	toucher.Close()

	entries := logs.FilterMessage("failed to update access timestamp").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "basemap", entries[0].ContextMap()["dataset"])
}
