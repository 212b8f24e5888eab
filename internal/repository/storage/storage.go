// Package storage is the boundary between tile lookups and the key-value
// backend holding the tile images.
//
// A Backend owns the connection to one store and hands out a Connector per
// table (column family, key prefix). Connectors are safe for concurrent use.
package storage

import (
	"context"
	"time"

	"github.com/jaennil/guide_helper/backend/tilestore/pkg/metrics"
)

// Key identifies a stored tile, see EncodeKey.
type Key string

// Record is one stored tile row.
type Record struct {
	Blob []byte
	// LastAccess is the last recorded read in milliseconds since the epoch,
	// zero when never touched.
	LastAccess int64
	// MimeType is empty when the backend does not store it per row.
	MimeType string
}

//go:generate mockgen -source=storage.go -destination=mocks/storage_mock.go -package=mocks

// Connector reads tiles from one table.
//
// Fetch reports absence with found == false and a nil error. Any failure of
// the query itself is returned as *Error.
type Connector interface {
	Fetch(ctx context.Context, key Key, level Consistency) (rec Record, found bool, err error)
	TouchAccessTimestamp(ctx context.Context, key Key, level Consistency) error
}

// Backend is a connected store. Connector fails with a *ConnectionError when
// the table does not exist or lacks a column the options require.
type Backend interface {
	Name() string
	Connector(table string, opts ...ConnectorOption) (Connector, error)
	Close() error
}

// ConnectorOption tunes a Connector to the dataset reading through it.
type ConnectorOption func(*connectorOptions)

type connectorOptions struct {
	accessTimestamp bool
}

// WithAccessTimestamp tells the connector whether the table carries the lru
// column. Without it fetches skip the column and touches are no-ops.
// Connectors assume the column exists unless told otherwise.
func WithAccessTimestamp(enabled bool) ConnectorOption {
	return func(o *connectorOptions) {
		o.accessTimestamp = enabled
	}
}

func newConnectorOptions(opts []ConnectorOption) connectorOptions {
	o := connectorOptions{accessTimestamp: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

const (
	opFetch = "fetch"
	opTouch = "touch"
)

// observe records duration and failure of one backend operation.
func observe(backend, op string, start time.Time, err error) {
	metrics.StorageOperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.WithLabelValues(backend, op).Inc()
	}
}
