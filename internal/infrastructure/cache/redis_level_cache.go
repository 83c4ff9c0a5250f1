package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/salonsuite/backend/internal/domain/stock"
	"go.uber.org/zap"
)

// RedisLevelCache implements LevelCache using Redis.
// This is suitable for distributed deployments where multiple instances
// serve reads for the same tenants.
type RedisLevelCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	keyPrefix  string
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisLevelCacheOption is a functional option for configuring the cache
type RedisLevelCacheOption func(*RedisLevelCache)

// WithLevelCacheTTL sets the entry TTL
func WithLevelCacheTTL(ttl time.Duration) RedisLevelCacheOption {
	return func(c *RedisLevelCache) {
		c.ttl = ttl
	}
}

// WithLevelCacheLogger sets the logger for the cache
func WithLevelCacheLogger(logger *zap.Logger) RedisLevelCacheOption {
	return func(c *RedisLevelCache) {
		c.logger = logger
	}
}

// NewRedisLevelCache creates a new Redis-based stock level cache
func NewRedisLevelCache(cfg RedisConfig, opts ...RedisLevelCacheOption) (*RedisLevelCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisLevelCache{
		client:     client,
		ownsClient: true,
		keyPrefix:  "stock:level:",
		ttl:        30 * time.Second,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// Get retrieves a cached stock level
func (c *RedisLevelCache) Get(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, bool, error) {
	key := c.keyPrefix + levelCacheKey(tenantID, itemID)

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached stock level: %w", err)
	}

	var level stock.StockLevel
	if err := json.Unmarshal(data, &level); err != nil {
		// A corrupt entry is dropped rather than returned
		c.logger.Warn("Dropping corrupt cached stock level",
			zap.String("key", key),
			zap.Error(err),
		)
		_ = c.client.Del(ctx, key).Err()
		return nil, false, nil
	}

	return &level, true, nil
}

// Set stores a stock level under the configured TTL
func (c *RedisLevelCache) Set(ctx context.Context, level *stock.StockLevel) error {
	key := c.keyPrefix + levelCacheKey(level.TenantID, level.ItemID)

	data, err := json.Marshal(level)
	if err != nil {
		return fmt.Errorf("failed to encode stock level for cache: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache stock level: %w", err)
	}

	return nil
}

// Invalidate drops the cached entry for an item
func (c *RedisLevelCache) Invalidate(ctx context.Context, tenantID, itemID uuid.UUID) error {
	key := c.keyPrefix + levelCacheKey(tenantID, itemID)

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached stock level: %w", err)
	}

	return nil
}

// Close closes the Redis client if this cache owns it
func (c *RedisLevelCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

var _ LevelCache = (*RedisLevelCache)(nil)
