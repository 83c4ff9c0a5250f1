package stock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockStockLevelRepository is a mock implementation of StockLevelRepository
type MockStockLevelRepository struct {
	mock.Mock
}

func (m *MockStockLevelRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, error) {
	args := m.Called(ctx, tenantID, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]stock.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) FindBelowMinimum(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.StockLevel, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]stock.StockLevel), args.Error(1)
}

func (m *MockStockLevelRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockLevelRepository) GetOrCreate(ctx context.Context, tenantID, itemID uuid.UUID, initial decimal.Decimal) (*stock.StockLevel, bool, error) {
	args := m.Called(ctx, tenantID, itemID, initial)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*stock.StockLevel), args.Bool(1), args.Error(2)
}

func (m *MockStockLevelRepository) ConditionalWrite(ctx context.Context, tenantID, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	args := m.Called(ctx, tenantID, itemID, expected, next)
	return args.Bool(0), args.Error(1)
}

func (m *MockStockLevelRepository) SetMinQuantity(ctx context.Context, tenantID, itemID uuid.UUID, min decimal.Decimal) error {
	args := m.Called(ctx, tenantID, itemID, min)
	return args.Error(0)
}

// MockUsageEventRepository is a mock implementation of UsageEventRepository
type MockUsageEventRepository struct {
	mock.Mock
}

func (m *MockUsageEventRepository) Append(ctx context.Context, event *stock.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockUsageEventRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*stock.UsageEvent, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stock.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) FindByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) ([]stock.UsageEvent, error) {
	args := m.Called(ctx, tenantID, itemID, filter)
	return args.Get(0).([]stock.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]stock.UsageEvent, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).([]stock.UsageEvent), args.Error(1)
}

func (m *MockUsageEventRepository) CountByItem(ctx context.Context, tenantID, itemID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, itemID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) CountForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, tenantID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageEventRepository) SumSignedByItem(ctx context.Context, tenantID, itemID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, tenantID, itemID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

// MockIdempotencyStore is a mock implementation of shared.IdempotencyStore
type MockIdempotencyStore struct {
	mock.Mock
}

func (m *MockIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, key, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockIdempotencyStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// inMemoryLevelRepo is a functional in-memory StockLevelRepository whose
// ConditionalWrite has real compare-and-set semantics, for exercising the
// retry loop under actual contention.
type inMemoryLevelRepo struct {
	mu     sync.Mutex
	levels map[string]*stock.StockLevel
}

func newInMemoryLevelRepo() *inMemoryLevelRepo {
	return &inMemoryLevelRepo{levels: make(map[string]*stock.StockLevel)}
}

func levelKey(tenantID, itemID uuid.UUID) string {
	return tenantID.String() + "/" + itemID.String()
}

func (r *inMemoryLevelRepo) put(level *stock.StockLevel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levels[levelKey(level.TenantID, level.ItemID)] = level
}

func (r *inMemoryLevelRepo) FindByItem(_ context.Context, tenantID, itemID uuid.UUID) (*stock.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[levelKey(tenantID, itemID)]
	if !ok {
		return nil, shared.ErrNotFound
	}
	snapshot := *level
	return &snapshot, nil
}

func (r *inMemoryLevelRepo) FindAllForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]stock.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLevel
	for _, level := range r.levels {
		if level.TenantID == tenantID {
			out = append(out, *level)
		}
	}
	return out, nil
}

func (r *inMemoryLevelRepo) FindBelowMinimum(_ context.Context, tenantID uuid.UUID, _ shared.Filter) ([]stock.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []stock.StockLevel
	for _, level := range r.levels {
		if level.TenantID == tenantID && level.IsBelowMinimum() {
			out = append(out, *level)
		}
	}
	return out, nil
}

func (r *inMemoryLevelRepo) CountForTenant(_ context.Context, tenantID uuid.UUID, _ shared.Filter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, level := range r.levels {
		if level.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (r *inMemoryLevelRepo) GetOrCreate(_ context.Context, tenantID, itemID uuid.UUID, initial decimal.Decimal) (*stock.StockLevel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if level, ok := r.levels[levelKey(tenantID, itemID)]; ok {
		snapshot := *level
		return &snapshot, false, nil
	}
	level, err := stock.NewStockLevel(tenantID, itemID, initial)
	if err != nil {
		return nil, false, err
	}
	r.levels[levelKey(tenantID, itemID)] = level
	snapshot := *level
	return &snapshot, true, nil
}

func (r *inMemoryLevelRepo) ConditionalWrite(_ context.Context, tenantID, itemID uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[levelKey(tenantID, itemID)]
	if !ok {
		return false, shared.ErrNotFound
	}
	if !level.Quantity.Equal(expected) {
		return false, nil
	}
	level.Quantity = next
	return true, nil
}

func (r *inMemoryLevelRepo) SetMinQuantity(_ context.Context, tenantID, itemID uuid.UUID, min decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	level, ok := r.levels[levelKey(tenantID, itemID)]
	if !ok {
		return shared.ErrNotFound
	}
	level.MinQuantity = min
	return nil
}
