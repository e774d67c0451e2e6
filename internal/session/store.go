// Package session maps client session IDs to backend sessions and keeps the
// application state for each conversation.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists session records keyed by context ID.
type Store interface {
	// Get returns the record, or nil if there is none.
	Get(ctx context.Context, contextID string) (*Record, error)
	// Create inserts a new record. Returns ErrExists if the context is taken.
	Create(ctx context.Context, rec *Record) error
	// Put replaces the record in one step.
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, contextID string) error
	Close() error
}

// Expirer is implemented by stores that need a periodic sweep to drop
// expired records.
type Expirer interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// StoreType selects a Store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQLite StoreType = "sqlite"
)

const defaultTTL = 24 * time.Hour

// StoreOption configures NewStore.
type StoreOption func(*storeConfig)

type storeConfig struct {
	ttl         time.Duration
	redisClient *redis.Client
	sqliteDSN   string
	now         func() time.Time
}

// WithTTL sets how long an untouched record lives. Zero keeps the default.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// WithRedisClient sets the client for the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithSQLiteDSN sets the database for the sqlite driver.
func WithSQLiteDSN(dsn string) StoreOption {
	return func(c *storeConfig) {
		c.sqliteDSN = dsn
	}
}

// WithClock overrides time.Now for expiry checks.
func WithClock(now func() time.Time) StoreOption {
	return func(c *storeConfig) {
		c.now = now
	}
}

// NewStore creates a Store of the given type.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.ttl <= 0 {
		cfg.ttl = defaultTTL
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(cfg.ttl, cfg.now), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, cfg.ttl), nil
	case StoreTypeSQLite:
		dsn := cfg.sqliteDSN
		if dsn == "" {
			dsn = ":memory:"
		}
		return NewSQLiteStore(dsn, cfg.ttl, cfg.now)
	default:
		return nil, ErrInvalidStoreType
	}
}
