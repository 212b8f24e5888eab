package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

const sqliteBackendName = "sqlite"

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteBackend reads tiles from a local SQLite file. Consistency levels do
// not apply to a single file and are ignored.
type SQLiteBackend struct {
	db     *sql.DB
	clock  clock.Clock
	logger logger.Logger
}

var _ Backend = (*SQLiteBackend)(nil)

func NewSQLiteBackend(path string, clk clock.Clock, l logger.Logger) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &ConnectionError{Backend: sqliteBackendName, Target: path, Err: err}
	}

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Backend: sqliteBackendName, Target: path, Err: err}
	}

	if clk == nil {
		clk = clock.New()
	}

	b := &SQLiteBackend{
		db:     db,
		clock:  clk,
		logger: l,
	}

	err = b.runMigrations()
	if err != nil {
		db.Close()
		return nil, &ConnectionError{Backend: sqliteBackendName, Target: path, Err: fmt.Errorf("migrations: %w", err)}
	}

	l.Info("sqlite backend initialized", "path", path)

	return b, nil
}

func (b *SQLiteBackend) runMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	err := goose.SetDialect("sqlite3")
	if err != nil {
		return err
	}

	return goose.Up(b.db, "migrations")
}

func (b *SQLiteBackend) Name() string { return sqliteBackendName }

func (b *SQLiteBackend) Connector(table string, _ ...ConnectorOption) (Connector, error) {
	if err := ValidateTableName(table); err != nil {
		return nil, &ConnectionError{Backend: sqliteBackendName, Target: "table " + table, Err: err}
	}

	var name string
	err := b.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = errTableNotFound
		}
		return nil, &ConnectionError{Backend: sqliteBackendName, Target: "table " + table, Err: err}
	}

	return &sqliteConnector{
		db:         b.db,
		clock:      b.clock,
		logger:     b.logger,
		fetchQuery: fmt.Sprintf(`SELECT img, lru, mime FROM %s WHERE key = ?`, table),
		touchQuery: fmt.Sprintf(`UPDATE %s SET lru = ? WHERE key = ?`, table),
	}, nil
}

func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}

type sqliteConnector struct {
	db         *sql.DB
	clock      clock.Clock
	logger     logger.Logger
	fetchQuery string
	touchQuery string
}

func (c *sqliteConnector) Fetch(ctx context.Context, key Key, _ Consistency) (rec Record, found bool, err error) {
	defer func(start time.Time) { observe(sqliteBackendName, opFetch, start, err) }(time.Now())

	c.logger.Debug("sqlite fetch", "key", key)

	var (
		img  []byte
		lru  sql.NullInt64
		mime sql.NullString
	)
	err = c.db.QueryRowContext(ctx, c.fetchQuery, string(key)).Scan(&img, &lru, &mime)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, false, nil
		}
		c.logger.Error("sqlite fetch failed", "key", key, "error", err)
		return Record{}, false, newError(sqliteBackendName, opFetch, key, err, nil)
	}
	if img == nil {
		return Record{}, false, nil
	}

	return Record{
		Blob:       img,
		LastAccess: lru.Int64,
		MimeType:   mime.String,
	}, true, nil
}

func (c *sqliteConnector) TouchAccessTimestamp(ctx context.Context, key Key, _ Consistency) (err error) {
	defer func(start time.Time) { observe(sqliteBackendName, opTouch, start, err) }(time.Now())

	now := c.clock.Now().UnixNano() / int64(time.Millisecond)
	if _, err := c.db.ExecContext(ctx, c.touchQuery, now, string(key)); err != nil {
		return newError(sqliteBackendName, opTouch, key, err, nil)
	}
	return nil
}
