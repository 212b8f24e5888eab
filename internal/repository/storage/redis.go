package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/redis/go-redis/v9"
)

const redisBackendName = "redis"

// Hash fields of a tile row.
const (
	fieldImage      = "img"
	fieldLastAccess = "lru"
	fieldMimeType   = "mime"
)

// RedisBackend stores every tile as a hash <prefix><table>:<key> with the
// fields img, lru and mime. Redis has a single primary per key, so the
// consistency levels are accepted and ignored.
type RedisBackend struct {
	client *redis.Client
	prefix string
	clock  clock.Clock
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Clock       clock.Clock
}

var _ Backend = (*RedisBackend)(nil)

func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, &ConnectionError{Backend: redisBackendName, Target: cfg.Addr, Err: err}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &RedisBackend{
		client: client,
		prefix: cfg.KeyPrefix,
		clock:  clk,
	}, nil
}

func (b *RedisBackend) Name() string { return redisBackendName }

// Connector binds table as a key namespace. Redis has no schema to check
// it against.
func (b *RedisBackend) Connector(table string, _ ...ConnectorOption) (Connector, error) {
	if table == "" {
		return nil, &ConnectionError{Backend: redisBackendName, Target: "table", Err: errors.New("empty table name")}
	}
	return &redisConnector{
		client:    b.client,
		namespace: b.prefix + table + ":",
		clock:     b.clock,
	}, nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

type redisConnector struct {
	client    *redis.Client
	namespace string
	clock     clock.Clock
}

func (c *redisConnector) keyFor(k Key) string {
	return c.namespace + string(k)
}

func (c *redisConnector) Fetch(ctx context.Context, key Key, _ Consistency) (rec Record, found bool, err error) {
	defer func(start time.Time) { observe(redisBackendName, opFetch, start, err) }(time.Now())

	fields, err := c.client.HGetAll(ctx, c.keyFor(key)).Result()
	if err != nil {
		return Record{}, false, newError(redisBackendName, opFetch, key, err, nil)
	}

	img, ok := fields[fieldImage]
	if !ok {
		return Record{}, false, nil
	}

	rec = Record{
		Blob:     []byte(img),
		MimeType: fields[fieldMimeType],
	}
	if lru, ok := fields[fieldLastAccess]; ok {
		rec.LastAccess, err = strconv.ParseInt(lru, 10, 64)
		if err != nil {
			return Record{}, false, newError(redisBackendName, opFetch, key, fmt.Errorf("malformed %s field: %w", fieldLastAccess, err), nil)
		}
	}

	return rec, true, nil
}

func (c *redisConnector) TouchAccessTimestamp(ctx context.Context, key Key, _ Consistency) (err error) {
	defer func(start time.Time) { observe(redisBackendName, opTouch, start, err) }(time.Now())

	now := c.clock.Now().UnixNano() / int64(time.Millisecond)
	if err := c.client.HSet(ctx, c.keyFor(key), fieldLastAccess, now).Err(); err != nil {
		return newError(redisBackendName, opTouch, key, err, nil)
	}
	return nil
}
