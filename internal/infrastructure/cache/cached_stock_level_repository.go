package cache

import (
	"context"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CachedStockLevelRepository decorates a StockLevelRepository with a
// read-through LevelCache on point lookups. List queries and counts always
// go to the underlying repository.
//
// Every write path invalidates the cached entry, including a conditional
// write that did not apply: in that case the cached quantity is known to be
// stale, and dropping it lets the next retry observe the current value.
type CachedStockLevelRepository struct {
	repo   stock.StockLevelRepository
	cache  LevelCache
	logger *zap.Logger
}

// NewCachedStockLevelRepository creates a caching decorator around repo.
func NewCachedStockLevelRepository(repo stock.StockLevelRepository, levelCache LevelCache, logger *zap.Logger) *CachedStockLevelRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedStockLevelRepository{
		repo:   repo,
		cache:  levelCache,
		logger: logger,
	}
}

// FindByItem returns the stock level for an item, served from cache when fresh.
func (r *CachedStockLevelRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, error) {
	if level, found, err := r.cache.Get(ctx, tenantID, itemID); err != nil {
		// Cache failures degrade to a repository read
		r.logger.Warn("Stock level cache read failed",
			zap.String("item_id", itemID.String()),
			zap.Error(err),
		)
	} else if found {
		return level, nil
	}

	level, err := r.repo.FindByItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, level); err != nil {
		r.logger.Warn("Stock level cache write failed",
			zap.String("item_id", itemID.String()),
			zap.Error(err),
		)
	}

	return level, nil
}

// FindAllForTenant delegates to the underlying repository.
func (r *CachedStockLevelRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	return r.repo.FindAllForTenant(ctx, tenantID, filter)
}

// FindBelowMinimum delegates to the underlying repository.
func (r *CachedStockLevelRepository) FindBelowMinimum(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	return r.repo.FindBelowMinimum(ctx, tenantID, filter)
}

// CountForTenant delegates to the underlying repository.
func (r *CachedStockLevelRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	return r.repo.CountForTenant(ctx, tenantID, filter)
}

// GetOrCreate delegates to the underlying repository and refreshes the cache
// with the returned level.
func (r *CachedStockLevelRepository) GetOrCreate(ctx context.Context, tenantID, itemID uuid.UUID, initial decimal.Decimal) (*stock.StockLevel, bool, error) {
	level, created, err := r.repo.GetOrCreate(ctx, tenantID, itemID, initial)
	if err != nil {
		return nil, false, err
	}

	if cacheErr := r.cache.Set(ctx, level); cacheErr != nil {
		r.logger.Warn("Stock level cache write failed",
			zap.String("item_id", itemID.String()),
			zap.Error(cacheErr),
		)
	}

	return level, created, nil
}

// ConditionalWrite delegates to the underlying repository and drops the
// cached entry regardless of the outcome.
func (r *CachedStockLevelRepository) ConditionalWrite(ctx context.Context, tenantID, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	applied, err := r.repo.ConditionalWrite(ctx, tenantID, itemID, expected, next)

	if cacheErr := r.cache.Invalidate(ctx, tenantID, itemID); cacheErr != nil {
		r.logger.Warn("Stock level cache invalidation failed",
			zap.String("item_id", itemID.String()),
			zap.Error(cacheErr),
		)
	}

	return applied, err
}

// SetMinQuantity delegates to the underlying repository and drops the cached entry.
func (r *CachedStockLevelRepository) SetMinQuantity(ctx context.Context, tenantID, itemID uuid.UUID, min decimal.Decimal) error {
	err := r.repo.SetMinQuantity(ctx, tenantID, itemID, min)

	if cacheErr := r.cache.Invalidate(ctx, tenantID, itemID); cacheErr != nil {
		r.logger.Warn("Stock level cache invalidation failed",
			zap.String("item_id", itemID.String()),
			zap.Error(cacheErr),
		)
	}

	return err
}

// Ensure CachedStockLevelRepository implements StockLevelRepository
var _ stock.StockLevelRepository = (*CachedStockLevelRepository)(nil)
