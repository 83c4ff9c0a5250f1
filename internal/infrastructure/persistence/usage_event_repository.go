package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormUsageEventRepository implements UsageEventRepository using GORM.
// The ledger is append-only at the storage layer: this repository only
// ever inserts and reads, it never updates or deletes rows.
type GormUsageEventRepository struct {
	db *gorm.DB
}

// NewGormUsageEventRepository creates a new GormUsageEventRepository
func NewGormUsageEventRepository(db *gorm.DB) *GormUsageEventRepository {
	return &GormUsageEventRepository{db: db}
}

// Append inserts a new ledger entry
func (r *GormUsageEventRepository) Append(ctx context.Context, event *stock.UsageEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FindByID finds a ledger entry by ID within a tenant
func (r *GormUsageEventRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*stock.UsageEvent, error) {
	var event stock.UsageEvent
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &event, nil
}

// FindByItem finds ledger entries for one item
func (r *GormUsageEventRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]stock.UsageEvent, error) {
	var events []stock.UsageEvent
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.UsageEvent{}).
			Where("tenant_id = ? AND item_id = ?", tenantID, itemID),
		filter,
	)

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FindAllForTenant finds all ledger entries for a tenant
func (r *GormUsageEventRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.UsageEvent, error) {
	var events []stock.UsageEvent
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&stock.UsageEvent{}).
			Where("tenant_id = ?", tenantID),
		filter,
	)

	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByItem counts ledger entries for one item
func (r *GormUsageEventRepository) CountByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&stock.UsageEvent{}).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CountForTenant counts ledger entries for a tenant
func (r *GormUsageEventRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&stock.UsageEvent{}).Where("tenant_id = ?", tenantID)
	query = r.applyFilterWithoutPagination(query, filter)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumSignedByItem sums signed amounts for one item: restocks count
// positive, usage counts negative.
func (r *GormUsageEventRepository) SumSignedByItem(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&stock.UsageEvent{}).
		Select("COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE -amount END), 0) as total", stock.EntryTypeRestock).
		Where("tenant_id = ? AND item_id = ?", tenantID, itemID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// applyFilter applies filter options to the query
func (r *GormUsageEventRepository) applyFilter(query *gorm.DB, filter shared.Filter) *gorm.DB {
	query = r.applyFilterWithoutPagination(query, filter)

	if filter.Paginates() {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	orderBy := ValidateSortField(filter.OrderBy, UsageEventSortFields, "recorded_at")
	query = query.Order(orderBy + " " + ValidateSortOrder(filter.OrderDir))

	return query
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormUsageEventRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	for key, value := range filter.Filters {
		switch key {
		case "item_id":
			query = query.Where("item_id = ?", value)
		case "entry_type":
			query = query.Where("entry_type = ?", value)
		case "operator_id":
			query = query.Where("operator_id = ?", value)
		case "start_date":
			query = query.Where("recorded_at >= ?", value)
		case "end_date":
			query = query.Where("recorded_at <= ?", value)
		}
	}

	return query
}

// Ensure GormUsageEventRepository implements UsageEventRepository
var _ stock.UsageEventRepository = (*GormUsageEventRepository)(nil)
