package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/jaennil/guide_helper/backend/tilestore/internal/repository/storage"
	"github.com/joho/godotenv"
)

const (
	BackendCassandra = "cassandra"
	BackendRedis     = "redis"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"
)

type (
	Config struct {
		HTTP            HTTP            `envPrefix:"HTTP_"`
		Logger          Logger          `envPrefix:"LOGGER_"`
		Telemetry       Telemetry       `envPrefix:"TELEMETRY_"`
		Storage         Storage         `envPrefix:"STORAGE_"`
		Cassandra       Cassandra       `envPrefix:"CASSANDRA_"`
		Redis           Redis           `envPrefix:"REDIS_"`
		SQLite          SQLite          `envPrefix:"SQLITE_"`
		AccessTimestamp AccessTimestamp `envPrefix:"ACCESS_TIMESTAMP_"`
		Catalog         Catalog         `envPrefix:"CATALOG_"`
	}

	HTTP struct {
		Server Server `envPrefix:"SERVER_"`
	}

	Server struct {
		Port            string        `env:"PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
		WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"15s"`
		IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
		ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}

	Logger struct {
		Level string `env:"LEVEL" envDefault:"info"`
	}

	Telemetry struct {
		Enabled        bool   `env:"ENABLED" envDefault:"false"`
		ServiceName    string `env:"SERVICE_NAME" envDefault:"guide-helper-tilestore"`
		ServiceVersion string `env:"SERVICE_VERSION" envDefault:"1.0.0"`
		Environment    string `env:"ENVIRONMENT" envDefault:"production"`
		OTLPEndpoint   string `env:"OTLP_ENDPOINT" envDefault:"otel-collector.observability.svc.cluster.local:4317"`
	}

	Storage struct {
		Backend          string        `env:"BACKEND" envDefault:"cassandra"`
		ReadConsistency  string        `env:"READ_CONSISTENCY"`
		WriteConsistency string        `env:"WRITE_CONSISTENCY"`
		FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"2s"`
	}

	Cassandra struct {
		Hosts               []string      `env:"HOSTS" envSeparator:"," envDefault:"localhost"`
		Port                int           `env:"PORT" envDefault:"9042"`
		Keyspace            string        `env:"KEYSPACE" envDefault:"tiles"`
		Username            string        `env:"USERNAME"`
		Password            string        `env:"PASSWORD"`
		Timeout             time.Duration `env:"TIMEOUT" envDefault:"2s"`
		ConnectTimeout      time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
		NumConns            int           `env:"NUM_CONNS" envDefault:"2"`
		LoadBalancing       string        `env:"LOAD_BALANCING" envDefault:"token-aware"`
		LocalDC             string        `env:"LOCAL_DC"`
		RetryPolicy         string        `env:"RETRY_POLICY" envDefault:"downgrading"`
		RetryNum            int           `env:"RETRY_NUM" envDefault:"3"`
		DowngradeLevels     []string      `env:"DOWNGRADE_LEVELS" envSeparator:"," envDefault:"QUORUM,TWO,ONE"`
		ReconnectInterval   time.Duration `env:"RECONNECT_INTERVAL" envDefault:"100ms"`
		ReconnectMaxRetries int           `env:"RECONNECT_MAX_RETRIES" envDefault:"10"`
	}

	Redis struct {
		Addr      string `env:"ADDR" envDefault:"localhost:6379"`
		Password  string `env:"PASSWORD" envDefault:""`
		DB        int    `env:"DB" envDefault:"0"`
		KeyPrefix string `env:"KEY_PREFIX" envDefault:"tilestore:"`
	}

	SQLite struct {
		Path string `env:"PATH" envDefault:"tiles.db"`
	}

	AccessTimestamp struct {
		Workers   int           `env:"WORKERS" envDefault:"4"`
		QueueSize int           `env:"QUEUE_SIZE" envDefault:"1024"`
		Rate      float64       `env:"RATE" envDefault:"0"`
		Timeout   time.Duration `env:"TIMEOUT" envDefault:"5s"`
	}

	Catalog struct {
		Path string `env:"PATH" envDefault:"catalog.yaml"`
	}
)

func New() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Printf("NOTICE: .env file not found or cannot be loaded: %v\n", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values env cannot check by itself.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendCassandra, BackendRedis, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("STORAGE_BACKEND: unknown backend %q", c.Storage.Backend)
	}

	if _, err := c.Storage.Read(); err != nil {
		return fmt.Errorf("STORAGE_READ_CONSISTENCY: %w", err)
	}
	if _, err := c.Storage.Write(); err != nil {
		return fmt.Errorf("STORAGE_WRITE_CONSISTENCY: %w", err)
	}
	if _, err := c.Cassandra.Downgrade(); err != nil {
		return fmt.Errorf("CASSANDRA_DOWNGRADE_LEVELS: %w", err)
	}

	if c.Storage.Backend == BackendCassandra && len(c.Cassandra.Hosts) == 0 {
		return fmt.Errorf("CASSANDRA_HOSTS: at least one host is required")
	}

	return nil
}

func (s Storage) Read() (storage.Consistency, error) {
	return storage.ParseReadConsistency(s.ReadConsistency)
}

func (s Storage) Write() (storage.Consistency, error) {
	return storage.ParseWriteConsistency(s.WriteConsistency)
}

// Downgrade parses the ladder of the downgrading retry policy.
func (c Cassandra) Downgrade() ([]storage.Consistency, error) {
	levels := make([]storage.Consistency, 0, len(c.DowngradeLevels))
	for _, name := range c.DowngradeLevels {
		level, err := storage.ParseReadConsistency(name)
		if err != nil {
			return nil, err
		}
		if level == storage.ConsistencyDefault {
			continue
		}
		levels = append(levels, level)
	}
	return levels, nil
}
