package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/stock"
)

// levelEntry wraps a cached stock level with its expiration time
type levelEntry struct {
	level     stock.StockLevel
	expiresAt time.Time
}

// InMemoryLevelCache implements LevelCache using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryLevelCache struct {
	mu        sync.RWMutex
	entries   map[string]levelEntry
	ttl       time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryLevelCache creates a new in-memory stock level cache.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryLevelCache(ttl time.Duration) *InMemoryLevelCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}

	cache := &InMemoryLevelCache{
		entries:  make(map[string]levelEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

// Get retrieves a cached stock level
func (c *InMemoryLevelCache) Get(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[levelCacheKey(tenantID, itemID)]
	if !exists || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}

	// Return a copy so callers cannot mutate the cached value
	level := e.level
	return &level, true, nil
}

// Set stores a stock level under the configured TTL
func (c *InMemoryLevelCache) Set(ctx context.Context, level *stock.StockLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[levelCacheKey(level.TenantID, level.ItemID)] = levelEntry{
		level:     *level,
		expiresAt: time.Now().Add(c.ttl),
	}

	return nil
}

// Invalidate drops the cached entry for an item
func (c *InMemoryLevelCache) Invalidate(ctx context.Context, tenantID, itemID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, levelCacheKey(tenantID, itemID))
	return nil
}

// Close stops the cleanup goroutine and releases resources.
// Safe to call multiple times.
func (c *InMemoryLevelCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// cleanupLoop periodically removes expired entries
func (c *InMemoryLevelCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

// cleanup removes expired entries from the cache
func (c *InMemoryLevelCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Ensure InMemoryLevelCache implements LevelCache
var _ LevelCache = (*InMemoryLevelCache)(nil)
