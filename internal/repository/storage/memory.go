package storage

import (
	"context"
	"errors"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/puzpuzpuz/xsync/v3"
)

const memoryBackendName = "memory"

var errTableNotFound = errors.New("table does not exist")

// MemoryBackend keeps tables in process. It honours no consistency level and
// is meant for tests and local development.
type MemoryBackend struct {
	tables *xsync.MapOf[string, *xsync.MapOf[Key, Record]]
	clock  clock.Clock
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend(clk clock.Clock) *MemoryBackend {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryBackend{
		tables: xsync.NewMapOf[string, *xsync.MapOf[Key, Record]](),
		clock:  clk,
	}
}

func (b *MemoryBackend) Name() string { return memoryBackendName }

func (b *MemoryBackend) CreateTable(table string) {
	b.tables.LoadOrStore(table, xsync.NewMapOf[Key, Record]())
}

// Put stores rec, creating the table when needed.
func (b *MemoryBackend) Put(table string, key Key, rec Record) {
	rows, _ := b.tables.LoadOrStore(table, xsync.NewMapOf[Key, Record]())
	rows.Store(key, rec)
}

// Get returns the raw row, including rows without an image.
func (b *MemoryBackend) Get(table string, key Key) (Record, bool) {
	rows, ok := b.tables.Load(table)
	if !ok {
		return Record{}, false
	}
	return rows.Load(key)
}

func (b *MemoryBackend) Connector(table string, _ ...ConnectorOption) (Connector, error) {
	rows, ok := b.tables.Load(table)
	if !ok {
		return nil, &ConnectionError{Backend: memoryBackendName, Target: "table " + table, Err: errTableNotFound}
	}
	return &memoryConnector{rows: rows, clock: b.clock}, nil
}

func (b *MemoryBackend) Close() error {
	b.tables.Clear()
	return nil
}

type memoryConnector struct {
	rows  *xsync.MapOf[Key, Record]
	clock clock.Clock
}

func (c *memoryConnector) Fetch(ctx context.Context, key Key, _ Consistency) (rec Record, found bool, err error) {
	defer func(start time.Time) { observe(memoryBackendName, opFetch, start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return Record{}, false, newError(memoryBackendName, opFetch, key, err, nil)
	}

	rec, ok := c.rows.Load(key)
	if !ok || rec.Blob == nil {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (c *memoryConnector) TouchAccessTimestamp(ctx context.Context, key Key, _ Consistency) (err error) {
	defer func(start time.Time) { observe(memoryBackendName, opTouch, start, err) }(time.Now())

	if err := ctx.Err(); err != nil {
		return newError(memoryBackendName, opTouch, key, err, nil)
	}

	now := c.clock.Now().UnixNano() / int64(time.Millisecond)
	c.rows.Compute(key, func(old Record, _ bool) (Record, bool) {
		old.LastAccess = now
		return old, false
	})
	return nil
}
