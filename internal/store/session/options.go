package session

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// StoreType names a session store driver.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"

	// DefaultTTL bounds how long an idle session is kept.
	DefaultTTL = 24 * time.Hour
)

// StoreOption configures a session store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// WithRedisClient sets the client used by the redis driver.
func WithRedisClient(client *redis.Client) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithTTL sets how long an idle session is kept.
func WithTTL(ttl time.Duration) StoreOption {
	return func(c *storeConfig) {
		c.ttl = ttl
	}
}

// NewStore builds the store for storeType.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	cfg := &storeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ttl := cfg.ttl
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	switch storeType {
	case StoreTypeMemory, "":
		return NewMemoryStore(ttl), nil
	case StoreTypeRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return NewRedisStore(cfg.redisClient, ttl), nil
	default:
		return nil, ErrInvalidStoreType
	}
}
