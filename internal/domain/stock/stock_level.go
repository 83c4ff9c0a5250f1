package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockLevel is the authoritative on-hand quantity for one item at one store.
// The composite identifier is TenantID + ItemID; the quantity is denormalized
// from the usage ledger but the level row is the source of truth.
//
// The quantity is never mutated in place by callers: all writes go through the
// conditional-write protocol (update only if the stored quantity still equals
// the previously observed quantity), so concurrent writers cannot overwrite
// each other's updates.
type StockLevel struct {
	shared.TenantEntity
	ItemID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_stock_level_tenant_item,priority:2"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Current on-hand quantity, never negative
	MinQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"` // Low-stock alert threshold
}

// TableName returns the table name for GORM
func (StockLevel) TableName() string {
	return "stock_levels"
}

// NewStockLevel creates a new stock level for a tenant-item combination
func NewStockLevel(tenantID, itemID uuid.UUID, initial decimal.Decimal) (*StockLevel, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if initial.IsNegative() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Initial quantity cannot be negative")
	}

	return &StockLevel{
		TenantEntity: shared.NewTenantEntity(tenantID),
		ItemID:       itemID,
		Quantity:     initial,
		MinQuantity:  decimal.Zero,
	}, nil
}

// NextQuantity computes the quantity that applying delta would produce.
// A decrement below zero is clamped to zero; the second return value reports
// whether clamping occurred.
func (l *StockLevel) NextQuantity(delta decimal.Decimal) (decimal.Decimal, bool) {
	return ClampQuantity(l.Quantity.Add(delta))
}

// ClampQuantity floors a computed quantity at zero
func ClampQuantity(q decimal.Decimal) (decimal.Decimal, bool) {
	if q.IsNegative() {
		return decimal.Zero, true
	}
	return q, false
}

// CanFulfill returns true if the current quantity covers the requested amount
func (l *StockLevel) CanFulfill(amount decimal.Decimal) bool {
	return l.Quantity.GreaterThanOrEqual(amount)
}

// IsBelowMinimum returns true if the quantity is below the alert threshold
func (l *StockLevel) IsBelowMinimum() bool {
	return l.MinQuantity.GreaterThan(decimal.Zero) && l.Quantity.LessThan(l.MinQuantity)
}

// SetMinQuantity sets the low-stock alert threshold
func (l *StockLevel) SetMinQuantity(quantity decimal.Decimal) error {
	if quantity.IsNegative() {
		return shared.NewDomainError("INVALID_QUANTITY", "Minimum quantity cannot be negative")
	}
	l.MinQuantity = quantity
	l.UpdatedAt = time.Now()
	return nil
}
