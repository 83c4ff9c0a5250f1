package cache

import (
	"fmt"
	"time"

	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Factory builds the cache-backed components from Redis configuration.
// When Redis is disabled or unreachable it hands out in-process
// equivalents, subject to the fallback policy.
type Factory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	levelCacheTTL         time.Duration
	allowInMemoryFallback bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-process stores
// when Redis is unavailable. Default is true (allow fallback).
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithCacheTTL sets the TTL applied to cached stock levels
func WithCacheTTL(ttl time.Duration) FactoryOption {
	return func(f *Factory) {
		f.levelCacheTTL = ttl
	}
}

// NewFactory creates a new cache factory
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func (f *Factory) redisCacheConfig() RedisConfig {
	return RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}
}

// CreateRedisIdempotencyStore creates a Redis-based idempotency store
func (f *Factory) CreateRedisIdempotencyStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(f.redisCacheConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis idempotency store: %w", err)
	}
	return store, nil
}

// CreateInMemoryIdempotencyStore creates an in-memory idempotency store.
// This is suitable for single-instance deployments and testing.
// WARNING: In-memory stores do not share state across process instances,
// which can lead to duplicate request processing in distributed deployments
func (f *Factory) CreateInMemoryIdempotencyStore() shared.IdempotencyStore {
	return NewInMemoryIdempotencyStore()
}

// CreateIdempotencyStore creates an idempotency store, preferring Redis and
// falling back to in-memory when Redis is disabled or unreachable and the
// fallback policy allows it.
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	if f.redisConfig.Enabled {
		store, err := f.CreateRedisIdempotencyStore()
		if err == nil {
			f.logger.Info("using Redis idempotency store")
			return store, nil
		}

		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required for idempotency but unavailable: %w", err)
		}

		f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store. "+
			"This may cause duplicate request processing in distributed deployments.",
			zap.Error(err),
		)
	}
	return f.CreateInMemoryIdempotencyStore(), nil
}

// CreateLevelCache creates the read cache for stock levels, preferring Redis
// and falling back to an in-process cache with the same TTL.
func (f *Factory) CreateLevelCache() LevelCache {
	if f.redisConfig.Enabled {
		redisCache, err := NewRedisLevelCache(f.redisCacheConfig(),
			WithLevelCacheTTL(f.levelCacheTTL),
			WithLevelCacheLogger(f.logger),
		)
		if err == nil {
			f.logger.Info("using Redis stock level cache")
			return redisCache
		}
		f.logger.Warn("Redis level cache unavailable, using in-memory cache", zap.Error(err))
	}
	return NewInMemoryLevelCache(f.levelCacheTTL)
}
