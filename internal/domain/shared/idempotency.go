package shared

import (
	"context"
	"time"
)

// IdempotencyStore tracks request keys that have already been processed.
// It is used to make ledger writes safe against client retries.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL
	// Returns true if the key was newly marked, false if it was already processed
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release gives a claimed key back so the caller may retry after a
	// failed attempt. Releasing an unclaimed key is a no-op.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
