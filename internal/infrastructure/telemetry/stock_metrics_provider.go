// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockMetricsProvider implements StockMetricsProvider using GORM.
// It queries the stock_levels table directly for aggregated metrics.
type GormStockMetricsProvider struct {
	db *gorm.DB
}

// NewGormStockMetricsProvider creates a new GormStockMetricsProvider.
func NewGormStockMetricsProvider(db *gorm.DB) *GormStockMetricsProvider {
	return &GormStockMetricsProvider{db: db}
}

// GetLowStockCount returns count of items below their minimum threshold for a tenant.
func (p *GormStockMetricsProvider) GetLowStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_levels").
		Where("tenant_id = ?", tenantID).
		Where("min_quantity > 0 AND quantity < min_quantity").
		Count(&count).Error

	return count, err
}

// GetZeroStockCount returns count of items whose counter sits at zero for a tenant.
func (p *GormStockMetricsProvider) GetZeroStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := p.db.WithContext(ctx).
		Table("stock_levels").
		Where("tenant_id = ? AND quantity = 0", tenantID).
		Count(&count).Error

	return count, err
}

// GormTenantProvider implements TenantProvider using GORM.
// Tenants are discovered from the stock_levels table itself, so no
// dedicated tenants table is required.
type GormTenantProvider struct {
	db *gorm.DB
}

// NewGormTenantProvider creates a new GormTenantProvider.
func NewGormTenantProvider(db *gorm.DB) *GormTenantProvider {
	return &GormTenantProvider{db: db}
}

// GetActiveTenantIDs returns all tenant IDs that own at least one stock level.
func (p *GormTenantProvider) GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := p.db.WithContext(ctx).
		Table("stock_levels").
		Distinct("tenant_id").
		Find(&ids).Error

	return ids, err
}
