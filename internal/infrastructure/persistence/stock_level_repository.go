package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockLevelRepository implements StockLevelRepository using GORM
type GormStockLevelRepository struct {
	db *gorm.DB
}

// NewGormStockLevelRepository creates a new GormStockLevelRepository
func NewGormStockLevelRepository(db *gorm.DB) *GormStockLevelRepository {
	return &GormStockLevelRepository{db: db}
}

// FindByItem finds the stock level for a tenant-item combination
func (r *GormStockLevelRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, error) {
	var level stock.StockLevel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID).
		First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &level, nil
}

// FindAllForTenant finds all stock levels for a tenant
func (r *GormStockLevelRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	var levels []stock.StockLevel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLevel{}).
			Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// FindBelowMinimum finds levels below their alert threshold
func (r *GormStockLevelRepository) FindBelowMinimum(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	var levels []stock.StockLevel
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.StockLevel{}).
			Where("tenant_id = ? AND min_quantity > 0 AND quantity < min_quantity", tenantID),
		filter,
	)

	if err := query.Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

// CountForTenant counts stock levels for a tenant
func (r *GormStockLevelRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&stock.StockLevel{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetOrCreate gets the existing stock level or creates a new one
func (r *GormStockLevelRepository) GetOrCreate(ctx context.Context, tenantID, itemID uuid.UUID, initial decimal.Decimal) (*stock.StockLevel, bool, error) {
	// Try to find existing
	level, err := r.FindByItem(ctx, tenantID, itemID)
	if err == nil {
		return level, false, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, false, err
	}

	level, err = stock.NewStockLevel(tenantID, itemID, initial)
	if err != nil {
		return nil, false, err
	}

	// Use ON CONFLICT to handle race conditions
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "item_id"}},
			DoNothing: true,
		}).
		Create(level)
	if result.Error != nil {
		return nil, false, result.Error
	}

	// If the row wasn't created (conflict), fetch the existing one
	if result.RowsAffected == 0 {
		existing, err := r.FindByItem(ctx, tenantID, itemID)
		return existing, false, err
	}

	return level, true, nil
}

// ConditionalWrite updates the quantity only if the stored quantity still
// equals expected. A return of (false, nil) means the predicate did not
// match and nothing was written.
func (r *GormStockLevelRepository) ConditionalWrite(ctx context.Context, tenantID, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&stock.StockLevel{}).
		Where("tenant_id = ? AND item_id = ? AND quantity = ?", tenantID, itemID, expected).
		Update("quantity", next)

	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SetMinQuantity updates the low-stock threshold
func (r *GormStockLevelRepository) SetMinQuantity(ctx context.Context, tenantID, itemID uuid.UUID, min decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&stock.StockLevel{}).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID).
		Update("min_quantity", min)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// applyFilter applies filter options to the query
func (r *GormStockLevelRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Paginates() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, StockLevelSortFields, "created_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormStockLevelRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "item_id":
			query = query.Where("item_id = ?", value)
		case "below_minimum":
			if value == true {
				query = query.Where("min_quantity > 0 AND quantity < min_quantity")
			}
		case "has_stock":
			if value == true {
				query = query.Where("quantity > 0")
			}
		case "no_stock":
			if value == true {
				query = query.Where("quantity = 0")
			}
		}
	}

	return query
}

// Ensure GormStockLevelRepository implements StockLevelRepository
var _ stock.StockLevelRepository = (*GormStockLevelRepository)(nil)
