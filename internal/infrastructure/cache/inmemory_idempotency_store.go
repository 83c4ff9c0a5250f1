package cache

import (
	"context"
	"sync"
	"time"

	"github.com/salonsuite/backend/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// record holds the expiry for one request key
type record struct {
	expiresAt time.Time
}

func (r record) expired(now time.Time) bool {
	return now.After(r.expiresAt)
}

// InMemoryIdempotencyStore implements IdempotencyStore using an in-memory map
// This is suitable for single-instance deployments and testing
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	records   map[string]record
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	sweepEach time.Duration
}

// InMemoryIdempotencyStoreOption configures the in-memory store
type InMemoryIdempotencyStoreOption func(*InMemoryIdempotencyStore)

// WithSweepInterval overrides how often expired keys are swept out
func WithSweepInterval(interval time.Duration) InMemoryIdempotencyStoreOption {
	return func(s *InMemoryIdempotencyStore) {
		s.sweepEach = interval
	}
}

// NewInMemoryIdempotencyStore creates a new in-memory idempotency store
// It starts a background goroutine to clean up expired entries
func NewInMemoryIdempotencyStore(opts ...InMemoryIdempotencyStoreOption) *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		records:   make(map[string]record),
		stopChan:  make(chan struct{}),
		sweepEach: defaultSweepInterval,
	}

	for _, opt := range opts {
		opt(store)
	}

	store.wg.Add(1)
	go store.sweepLoop()

	return store
}

// MarkProcessed marks a key as processed with a TTL
// Returns true if the key was newly marked, false if it was already processed
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if r, exists := s.records[key]; exists && !r.expired(now) {
		return false, nil
	}

	// New key, or an expired one being reclaimed
	s.records[key] = record{expiresAt: now.Add(ttl)}
	return true, nil
}

// IsProcessed checks if a key has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.records[key]
	if !exists || r.expired(now) {
		return false, nil
	}
	return true, nil
}

// Release drops a claimed key so the same request may be retried.
func (s *InMemoryIdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Close stops the cleanup goroutine and releases resources
// Safe to call multiple times
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// sweepLoop periodically removes expired keys
func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepEach)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes expired keys from the store
func (s *InMemoryIdempotencyStore) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, r := range s.records {
		if r.expired(now) {
			delete(s.records, key)
		}
	}
}

// Size returns the number of keys in the store (for testing/monitoring)
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Ensure InMemoryIdempotencyStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
