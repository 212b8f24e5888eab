package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/gocql/gocql"
	"github.com/hailocab/go-hostpool"
	"github.com/jaennil/guide_helper/backend/tilestore/pkg/logger"
)

const cassandraBackendName = "cassandra"

// Columns of a tile table.
const (
	columnKey        = "key"
	columnImage      = "img"
	columnLastAccess = "lru"
)

var errColumnNotFound = errors.New("column does not exist")

// Host selection policies.
const (
	LoadBalancingRoundRobin   = "round-robin"
	LoadBalancingTokenAware   = "token-aware"
	LoadBalancingLatencyAware = "latency-aware"
	LoadBalancingDCAware      = "dc-aware"
)

// Retry policies.
const (
	RetryDowngrading = "downgrading"
	RetrySimple      = "simple"
	RetryNone        = "none"
)

var DefaultDowngradeLevels = []Consistency{ConsistencyQuorum, ConsistencyTwo, ConsistencyOne}

type CassandraConfig struct {
	Hosts    []string
	Port     int
	Keyspace string
	Username string
	Password string

	Timeout        time.Duration
	ConnectTimeout time.Duration
	NumConns       int

	LoadBalancing string
	LocalDC       string

	RetryPolicy     string
	RetryNum        int
	DowngradeLevels []Consistency

	ReconnectInterval   time.Duration
	ReconnectMaxRetries int

	Clock  clock.Clock
	Logger logger.Logger
}

// CassandraBackend holds one session bound to the configured keyspace and
// shared by every connector.
type CassandraBackend struct {
	session  cqlSession
	keyspace string
	clock    clock.Clock
	logger   logger.Logger
}

var _ Backend = (*CassandraBackend)(nil)

func NewCassandraBackend(cfg CassandraConfig) (*CassandraBackend, error) {
	cluster, err := newClusterConfig(cfg)
	if err != nil {
		return nil, err
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, &ConnectionError{
			Backend: cassandraBackendName,
			Target:  fmt.Sprintf("keyspace %s on %v", cfg.Keyspace, cfg.Hosts),
			Err:     err,
		}
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	l := cfg.Logger
	if l == nil {
		l = logger.NoOp()
	}

	l.Info("cassandra session established",
		"hosts", cfg.Hosts,
		"keyspace", cfg.Keyspace,
		"load_balancing", cfg.LoadBalancing,
		"retry_policy", cfg.RetryPolicy,
	)

	return &CassandraBackend{
		session:  gocqlSession{session: session},
		keyspace: cfg.Keyspace,
		clock:    clk,
		logger:   l,
	}, nil
}

func newClusterConfig(cfg CassandraConfig) (*gocql.ClusterConfig, error) {
	if len(cfg.Hosts) == 0 {
		return nil, errors.New("cassandra: no hosts configured")
	}
	if cfg.Keyspace == "" {
		return nil, errors.New("cassandra: no keyspace configured")
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	if cfg.Port > 0 {
		cluster.Port = cfg.Port
	}
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.ConnectTimeout > 0 {
		cluster.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	hostPolicy, err := hostSelectionPolicy(cfg.LoadBalancing, cfg.LocalDC)
	if err != nil {
		return nil, err
	}
	cluster.PoolConfig.HostSelectionPolicy = hostPolicy

	cluster.RetryPolicy, err = retryPolicy(cfg.RetryPolicy, cfg.RetryNum, cfg.DowngradeLevels)
	if err != nil {
		return nil, err
	}

	interval := cfg.ReconnectInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	cluster.ReconnectionPolicy = &gocql.ConstantReconnectionPolicy{
		MaxRetries: cfg.ReconnectMaxRetries,
		Interval:   interval,
	}

	return cluster, nil
}

func hostSelectionPolicy(name, localDC string) (gocql.HostSelectionPolicy, error) {
	switch name {
	case LoadBalancingRoundRobin:
		return gocql.RoundRobinHostPolicy(), nil
	case "", LoadBalancingTokenAware:
		return gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy()), nil
	case LoadBalancingLatencyAware:
		// epsilon greedy prefers the hosts that answered fastest recently
		return gocql.HostPoolHostPolicy(
			hostpool.NewEpsilonGreedy(nil, 0, &hostpool.LinearEpsilonValueCalculator{}),
		), nil
	case LoadBalancingDCAware:
		if localDC == "" {
			return nil, errors.New("cassandra: dc-aware load balancing needs a local datacenter")
		}
		return gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(localDC)), nil
	default:
		return nil, fmt.Errorf("cassandra: unknown load balancing policy %q", name)
	}
}

func retryPolicy(name string, num int, downgrade []Consistency) (gocql.RetryPolicy, error) {
	switch name {
	case "", RetryDowngrading:
		if len(downgrade) == 0 {
			downgrade = DefaultDowngradeLevels
		}
		levels := make([]gocql.Consistency, 0, len(downgrade))
		for _, c := range downgrade {
			gc, ok := toGocqlConsistency(c)
			if !ok || c == ConsistencyAny {
				return nil, fmt.Errorf("cassandra: consistency %s cannot be used as a downgrade level", c)
			}
			levels = append(levels, gc)
		}
		return &gocql.DowngradingConsistencyRetryPolicy{ConsistencyLevelsToTry: levels}, nil
	case RetrySimple:
		return &gocql.SimpleRetryPolicy{NumRetries: num}, nil
	case RetryNone:
		return &gocql.SimpleRetryPolicy{NumRetries: 0}, nil
	default:
		return nil, fmt.Errorf("cassandra: unknown retry policy %q", name)
	}
}

func toGocqlConsistency(c Consistency) (gocql.Consistency, bool) {
	switch c {
	case ConsistencyOne:
		return gocql.One, true
	case ConsistencyTwo:
		return gocql.Two, true
	case ConsistencyThree:
		return gocql.Three, true
	case ConsistencyQuorum:
		return gocql.Quorum, true
	case ConsistencyAll:
		return gocql.All, true
	case ConsistencyAny:
		return gocql.Any, true
	default:
		return 0, false
	}
}

func isCassandraTimeout(err error) bool {
	if errors.Is(err, gocql.ErrTimeoutNoResponse) {
		return true
	}
	var rt *gocql.RequestErrReadTimeout
	var wt *gocql.RequestErrWriteTimeout
	return errors.As(err, &rt) || errors.As(err, &wt)
}

func (b *CassandraBackend) Name() string { return cassandraBackendName }

// Connector checks that table exists in the keyspace with the columns the
// connector reads before handing out a connector for it. Unquoted CQL
// identifiers are case-insensitive, so table is looked up lower case.
func (b *CassandraBackend) Connector(table string, opts ...ConnectorOption) (Connector, error) {
	o := newConnectorOptions(opts)

	name := strings.ToLower(table)
	target := fmt.Sprintf("table %s.%s", b.keyspace, name)
	if err := ValidateTableName(name); err != nil {
		return nil, &ConnectionError{Backend: cassandraBackendName, Target: target, Err: err}
	}

	ks, err := b.session.keyspaceMetadata(b.keyspace)
	if err != nil {
		return nil, &ConnectionError{Backend: cassandraBackendName, Target: target, Err: err}
	}
	tm, ok := ks.Tables[name]
	if !ok {
		return nil, &ConnectionError{Backend: cassandraBackendName, Target: target, Err: errTableNotFound}
	}

	columns := []string{columnKey, columnImage}
	if o.accessTimestamp {
		columns = append(columns, columnLastAccess)
	}
	for _, col := range columns {
		if _, ok := tm.Columns[col]; !ok {
			return nil, &ConnectionError{
				Backend: cassandraBackendName,
				Target:  target,
				Err:     fmt.Errorf("%w: %s", errColumnNotFound, col),
			}
		}
	}

	c := &cassandraConnector{
		session:         b.session,
		clock:           b.clock,
		accessTimestamp: o.accessTimestamp,
		fetchStmt:       fmt.Sprintf(`SELECT img FROM %s WHERE key = ?`, name),
	}
	if o.accessTimestamp {
		c.fetchStmt = fmt.Sprintf(`SELECT img, lru FROM %s WHERE key = ?`, name)
		c.touchStmt = fmt.Sprintf(`UPDATE %s SET lru = ? WHERE key = ?`, name)
	}

	return c, nil
}

func (b *CassandraBackend) Close() error {
	b.session.close()
	return nil
}

// cqlSession is the part of a gocql session the connectors use.
type cqlSession interface {
	scan(ctx context.Context, stmt string, level Consistency, args []any, dest ...any) error
	exec(ctx context.Context, stmt string, level Consistency, args ...any) error
	keyspaceMetadata(keyspace string) (*gocql.KeyspaceMetadata, error)
	close()
}

type gocqlSession struct {
	session *gocql.Session
}

func (s gocqlSession) query(ctx context.Context, stmt string, level Consistency, args []any) *gocql.Query {
	q := s.session.Query(stmt, args...).WithContext(ctx)
	if cl, ok := toGocqlConsistency(level); ok {
		q = q.Consistency(cl)
	}
	return q
}

func (s gocqlSession) scan(ctx context.Context, stmt string, level Consistency, args []any, dest ...any) error {
	return s.query(ctx, stmt, level, args).Idempotent(true).Scan(dest...)
}

func (s gocqlSession) exec(ctx context.Context, stmt string, level Consistency, args ...any) error {
	return s.query(ctx, stmt, level, args).Exec()
}

func (s gocqlSession) keyspaceMetadata(keyspace string) (*gocql.KeyspaceMetadata, error) {
	return s.session.KeyspaceMetadata(keyspace)
}

func (s gocqlSession) close() {
	s.session.Close()
}

type cassandraConnector struct {
	session         cqlSession
	clock           clock.Clock
	accessTimestamp bool
	fetchStmt       string
	touchStmt       string
}

func (c *cassandraConnector) Fetch(ctx context.Context, key Key, level Consistency) (rec Record, found bool, err error) {
	defer func(start time.Time) { observe(cassandraBackendName, opFetch, start, err) }(time.Now())

	var img []byte
	var lru int64
	dest := []any{&img}
	if c.accessTimestamp {
		dest = append(dest, &lru)
	}

	if err := c.session.scan(ctx, c.fetchStmt, level, []any{string(key)}, dest...); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, newError(cassandraBackendName, opFetch, key, err, isCassandraTimeout)
	}
	if img == nil {
		return Record{}, false, nil
	}

	return Record{Blob: img, LastAccess: lru}, true, nil
}

// TouchAccessTimestamp is a no-op on tables without the lru column.
func (c *cassandraConnector) TouchAccessTimestamp(ctx context.Context, key Key, level Consistency) (err error) {
	if !c.accessTimestamp {
		return nil
	}
	defer func(start time.Time) { observe(cassandraBackendName, opTouch, start, err) }(time.Now())

	now := c.clock.Now().UnixNano() / int64(time.Millisecond)
	if err := c.session.exec(ctx, c.touchStmt, level, now, string(key)); err != nil {
		return newError(cassandraBackendName, opTouch, key, err, isCassandraTimeout)
	}
	return nil
}
