package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/stock"
)

// LevelCache is a read cache for stock levels keyed by tenant and item.
// Implementations must treat a miss and an expired entry the same way:
// return found=false and no error.
type LevelCache interface {
	// Get returns the cached level for the item, if present and fresh
	Get(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, bool, error)

	// Set stores the level under the cache TTL
	Set(ctx context.Context, level *stock.StockLevel) error

	// Invalidate drops the cached entry for the item
	Invalidate(ctx context.Context, tenantID, itemID uuid.UUID) error

	// Close releases any resources held by the cache
	Close() error
}

// levelCacheKey builds the cache key for a stock level.
func levelCacheKey(tenantID, itemID uuid.UUID) string {
	return tenantID.String() + ":" + itemID.String()
}
