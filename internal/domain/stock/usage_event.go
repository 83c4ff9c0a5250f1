package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EntryType represents the direction of a usage ledger entry
type EntryType string

const (
	// EntryTypeUsage represents stock consumed during a service
	EntryTypeUsage EntryType = "USAGE"
	// EntryTypeRestock represents stock received or returned to the shelf
	EntryTypeRestock EntryType = "RESTOCK"
)

// String returns the string representation of EntryType
func (t EntryType) String() string {
	return string(t)
}

// IsValid returns true if the entry type is valid
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeUsage, EntryTypeRestock:
		return true
	}
	return false
}

// UsageEvent is an immutable ledger entry recording one stock movement.
// Events are written before the level update is attempted, so the ledger may
// run ahead of the counter when the update fails; it is never rewritten to
// hide that. Corrections are made with new entries, never updates.
type UsageEvent struct {
	shared.BaseEntity
	TenantID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_usage_event_tenant_time,priority:1"`
	ItemID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_usage_event_item"`
	EntryType  EntryType       `gorm:"type:varchar(20);not null;index:idx_usage_event_type"`
	Amount     decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Always positive, direction given by EntryType
	OperatorID *uuid.UUID      `gorm:"type:uuid"`                   // Staff member who recorded the event (optional)
	Note       string          `gorm:"type:varchar(255)"`
	RecordedAt time.Time       `gorm:"type:timestamptz;not null;index:idx_usage_event_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (UsageEvent) TableName() string {
	return "usage_events"
}

// NewUsageEvent creates a new usage ledger entry
func NewUsageEvent(tenantID, itemID uuid.UUID, entryType EntryType, amount decimal.Decimal) (*UsageEvent, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if !entryType.IsValid() {
		return nil, shared.NewDomainError("INVALID_ENTRY_TYPE", "Invalid entry type")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.ErrInvalidAmount
	}

	return &UsageEvent{
		BaseEntity: shared.NewBaseEntity(),
		TenantID:   tenantID,
		ItemID:     itemID,
		EntryType:  entryType,
		Amount:     amount,
		RecordedAt: time.Now(),
	}, nil
}

// WithOperatorID sets the operator for the event
func (e *UsageEvent) WithOperatorID(operatorID uuid.UUID) *UsageEvent {
	e.OperatorID = &operatorID
	return e
}

// WithNote sets the free-text note for the event
func (e *UsageEvent) WithNote(note string) *UsageEvent {
	e.Note = note
	return e
}

// SignedAmount returns the amount with sign: negative for usage, positive for restock
func (e *UsageEvent) SignedAmount() decimal.Decimal {
	if e.EntryType == EntryTypeUsage {
		return e.Amount.Neg()
	}
	return e.Amount
}
