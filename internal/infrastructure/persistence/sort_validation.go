package persistence

import (
	"strings"
)

// Sort fields and directions are interpolated into ORDER BY clauses, so
// both are checked against fixed sets before touching a query. Anything
// outside the set falls back to a safe default.

// ValidateSortOrder returns "ASC" when the input normalizes to it and
// "DESC" in every other case, including empty input.
func ValidateSortOrder(orderDir string) string {
	if strings.EqualFold(strings.TrimSpace(orderDir), "ASC") {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField returns the trimmed field when the whitelist allows
// it, otherwise defaultField.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed != "" && allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// StockLevelSortFields is the ORDER BY whitelist for stock level listings.
var StockLevelSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"item_id":      true,
	"quantity":     true,
	"min_quantity": true,
}

// UsageEventSortFields is the ORDER BY whitelist for ledger listings.
var UsageEventSortFields = map[string]bool{
	"id":          true,
	"created_at":  true,
	"item_id":     true,
	"entry_type":  true,
	"amount":      true,
	"recorded_at": true,
}
