package stock

import (
	"context"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockLevelRepository defines persistence operations for stock levels.
//
// ConditionalWrite is the storage half of the optimistic update protocol:
// the update carries a predicate on the previously observed quantity and
// reports whether it applied. A false return with a nil error means another
// writer changed the row first; the caller re-reads and retries.
type StockLevelRepository interface {
	// FindByItem finds the stock level for a tenant-item combination
	FindByItem(ctx context.Context, tenantID, itemID uuid.UUID) (*StockLevel, error)
	// FindAllForTenant finds all stock levels for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockLevel, error)
	// FindBelowMinimum finds levels below their alert threshold
	FindBelowMinimum(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]StockLevel, error)
	// CountForTenant counts stock levels for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	// GetOrCreate returns the existing level or creates one with the given
	// initial quantity. The bool reports whether a new level was created.
	GetOrCreate(ctx context.Context, tenantID, itemID uuid.UUID, initial decimal.Decimal) (*StockLevel, bool, error)
	// ConditionalWrite updates the quantity only if the stored quantity still
	// equals expected. Returns whether the write applied.
	ConditionalWrite(ctx context.Context, tenantID, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error)
	// SetMinQuantity updates the low-stock threshold
	SetMinQuantity(ctx context.Context, tenantID, itemID uuid.UUID, min decimal.Decimal) error
}

// UsageEventRepository defines persistence operations for the usage ledger.
// The ledger is append-only: there are deliberately no update or delete
// operations on this interface.
type UsageEventRepository interface {
	// Append inserts a new ledger entry
	Append(ctx context.Context, event *UsageEvent) error
	// FindByID finds a ledger entry by ID within a tenant
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*UsageEvent, error)
	// FindByItem finds ledger entries for one item
	FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]UsageEvent, error)
	// FindAllForTenant finds all ledger entries for a tenant
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]UsageEvent, error)
	// CountByItem counts ledger entries for one item
	CountByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) (int64, error)
	// CountForTenant counts ledger entries for a tenant
	CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error)
	// SumSignedByItem sums signed amounts (restocks positive, usage negative)
	// for one item, for ledger-based reconciliation
	SumSignedByItem(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error)
}
