package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
)

// RegisterItemRequest represents a request to start tracking an item
type RegisterItemRequest struct {
	ItemID          uuid.UUID        `json:"item_id" binding:"required"`
	InitialQuantity decimal.Decimal  `json:"initial_quantity"`
	MinQuantity     *decimal.Decimal `json:"min_quantity"`
	OperatorID      *uuid.UUID       `json:"operator_id"`
}

// RecordUsageRequest represents a request to record product consumption
type RecordUsageRequest struct {
	ItemID         uuid.UUID       `json:"item_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Note           string          `json:"note" binding:"max=500"`
	OperatorID     *uuid.UUID      `json:"operator_id"`
	IdempotencyKey string          `json:"idempotency_key" binding:"omitempty,max=128"`
}

// RestockRequest represents a request to add stock
type RestockRequest struct {
	ItemID         uuid.UUID       `json:"item_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount" binding:"required"`
	Note           string          `json:"note" binding:"max=500"`
	OperatorID     *uuid.UUID      `json:"operator_id"`
	IdempotencyKey string          `json:"idempotency_key" binding:"omitempty,max=128"`
}

// SetMinQuantityRequest represents a request to set the low-stock threshold
type SetMinQuantityRequest struct {
	ItemID      uuid.UUID       `json:"item_id" binding:"required"`
	MinQuantity decimal.Decimal `json:"min_quantity"`
}

// LevelListFilter represents filter options for stock level lists
type LevelListFilter struct {
	BelowMinimum *bool  `form:"below_minimum"`
	Page         int    `form:"page" binding:"omitempty,min=1"`
	PageSize     int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy      string `form:"order_by"`
	OrderDir     string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// UsageListFilter represents filter options for usage history lists.
// ItemID stays a string because gin's query binding has no uuid.UUID
// support; the service parses it after validation.
type UsageListFilter struct {
	ItemID    string     `form:"item_id" binding:"omitempty,uuid"`
	EntryType string     `form:"entry_type" binding:"omitempty,oneof=USAGE RESTOCK"`
	StartDate *time.Time `form:"start_date"`
	EndDate   *time.Time `form:"end_date"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string     `form:"order_by"`
	OrderDir  string     `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// StockLevelResponse represents a stock level in API responses
type StockLevelResponse struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	ItemID         uuid.UUID       `json:"item_id"`
	Quantity       decimal.Decimal `json:"quantity"`
	MinQuantity    decimal.Decimal `json:"min_quantity"`
	IsBelowMinimum bool            `json:"is_below_minimum"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UsageRecordedResponse represents the result of a usage or restock operation
type UsageRecordedResponse struct {
	EventID          uuid.UUID       `json:"event_id"`
	ItemID           uuid.UUID       `json:"item_id"`
	EntryType        string          `json:"entry_type"`
	Amount           decimal.Decimal `json:"amount"`
	PreviousQuantity decimal.Decimal `json:"previous_quantity"`
	NewQuantity      decimal.Decimal `json:"new_quantity"`
	Clamped          bool            `json:"clamped"`
	RecordedAt       time.Time       `json:"recorded_at"`
}

// UsageEventResponse represents a ledger entry in API responses
type UsageEventResponse struct {
	ID         uuid.UUID       `json:"id"`
	TenantID   uuid.UUID       `json:"tenant_id"`
	ItemID     uuid.UUID       `json:"item_id"`
	EntryType  string          `json:"entry_type"`
	Amount     decimal.Decimal `json:"amount"`
	OperatorID *uuid.UUID      `json:"operator_id,omitempty"`
	Note       string          `json:"note,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ReconcileResponse represents the result of a ledger reconciliation
type ReconcileResponse struct {
	ItemID             uuid.UUID       `json:"item_id"`
	PreviousQuantity   decimal.Decimal `json:"previous_quantity"`
	ReconciledQuantity decimal.Decimal `json:"reconciled_quantity"`
	Adjusted           bool            `json:"adjusted"`
}

// ToStockLevelResponse converts a domain StockLevel to a response DTO
func ToStockLevelResponse(level *stock.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		ID:             level.ID,
		TenantID:       level.TenantID,
		ItemID:         level.ItemID,
		Quantity:       level.Quantity,
		MinQuantity:    level.MinQuantity,
		IsBelowMinimum: level.IsBelowMinimum(),
		CreatedAt:      level.CreatedAt,
		UpdatedAt:      level.UpdatedAt,
	}
}

// ToStockLevelResponses converts a slice of domain StockLevels to responses
func ToStockLevelResponses(levels []stock.StockLevel) []StockLevelResponse {
	responses := make([]StockLevelResponse, len(levels))
	for i := range levels {
		responses[i] = ToStockLevelResponse(&levels[i])
	}
	return responses
}

// ToUsageEventResponse converts a domain UsageEvent to a response DTO
func ToUsageEventResponse(event *stock.UsageEvent) UsageEventResponse {
	return UsageEventResponse{
		ID:         event.ID,
		TenantID:   event.TenantID,
		ItemID:     event.ItemID,
		EntryType:  event.EntryType.String(),
		Amount:     event.Amount,
		OperatorID: event.OperatorID,
		Note:       event.Note,
		RecordedAt: event.RecordedAt,
		CreatedAt:  event.CreatedAt,
	}
}

// ToUsageEventResponses converts a slice of domain UsageEvents to responses
func ToUsageEventResponses(events []stock.UsageEvent) []UsageEventResponse {
	responses := make([]UsageEventResponse, len(events))
	for i := range events {
		responses[i] = ToUsageEventResponse(&events[i])
	}
	return responses
}
