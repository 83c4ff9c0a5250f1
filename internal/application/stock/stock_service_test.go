package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestStockService(levelRepo stock.StockLevelRepository, eventRepo stock.UsageEventRepository) *StockService {
	counter := NewCounterService(levelRepo, zap.NewNop()).WithBackoff(noWaitBackoff())
	return NewStockService(levelRepo, eventRepo, counter, zap.NewNop())
}

func domainErrorCode(t *testing.T, err error) string {
	t.Helper()
	var domainErr *shared.DomainError
	require.True(t, errors.As(err, &domainErr), "expected a domain error, got %v", err)
	return domainErr.Code
}

func TestStockService_RegisterItem(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("registers a new item with initial stock", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		level := newTestLevel(t, tenantID, itemID, 25)
		levelRepo.On("GetOrCreate", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(25))).
			Return(level, true, nil).Once()
		eventRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *stock.UsageEvent) bool {
			return e.EntryType == stock.EntryTypeRestock && e.Amount.Equal(decimal.NewFromInt(25))
		})).Return(nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{
			ItemID:          itemID,
			InitialQuantity: decimal.NewFromInt(25),
		})

		require.NoError(t, err)
		assert.Equal(t, itemID, response.ItemID)
		assert.Equal(t, decimal.NewFromInt(25), response.Quantity)
		levelRepo.AssertExpectations(t)
		eventRepo.AssertExpectations(t)
	})

	t.Run("registering an existing item leaves it untouched", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		level := newTestLevel(t, tenantID, itemID, 40)
		levelRepo.On("GetOrCreate", mock.Anything, tenantID, itemID, mock.Anything).
			Return(level, false, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{
			ItemID:          itemID,
			InitialQuantity: decimal.NewFromInt(100),
		})

		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(40), response.Quantity)
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("registers without an initial ledger entry when quantity is zero", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		level := newTestLevel(t, tenantID, itemID, 0)
		levelRepo.On("GetOrCreate", mock.Anything, tenantID, itemID, mock.Anything).
			Return(level, true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{ItemID: itemID})

		require.NoError(t, err)
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("sets the threshold on creation when provided", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		level := newTestLevel(t, tenantID, itemID, 0)
		minQty := decimal.NewFromInt(5)
		levelRepo.On("GetOrCreate", mock.Anything, tenantID, itemID, mock.Anything).
			Return(level, true, nil).Once()
		levelRepo.On("SetMinQuantity", mock.Anything, tenantID, itemID, decimalEq(minQty)).
			Return(nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{
			ItemID:      itemID,
			MinQuantity: &minQty,
		})

		require.NoError(t, err)
		assert.Equal(t, minQty, response.MinQuantity)
		levelRepo.AssertExpectations(t)
	})

	t.Run("rejects negative initial quantity", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{
			ItemID:          itemID,
			InitialQuantity: decimal.NewFromInt(-1),
		})

		require.Error(t, err)
		levelRepo.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails when the initial ledger entry cannot be written", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		level := newTestLevel(t, tenantID, itemID, 10)
		levelRepo.On("GetOrCreate", mock.Anything, tenantID, itemID, mock.Anything).
			Return(level, true, nil).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).
			Return(errors.New("insert failed")).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RegisterItem(context.Background(), tenantID, RegisterItemRequest{
			ItemID:          itemID,
			InitialQuantity: decimal.NewFromInt(10),
		})

		require.Error(t, err)
		assert.Equal(t, "LOG_WRITE_FAILED", domainErrorCode(t, err))
	})
}

func TestStockService_RecordUsage(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()
	operatorID := uuid.New()

	t.Run("writes the ledger entry then decrements the level", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 20), nil)
		eventRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *stock.UsageEvent) bool {
			return e.EntryType == stock.EntryTypeUsage &&
				e.Amount.Equal(decimal.NewFromInt(3)) &&
				e.OperatorID != nil && *e.OperatorID == operatorID &&
				e.Note == "balayage"
		})).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(20)), decimalEq(decimal.NewFromInt(17))).
			Return(true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID:     itemID,
			Amount:     decimal.NewFromInt(3),
			Note:       "balayage",
			OperatorID: &operatorID,
		})

		require.NoError(t, err)
		assert.Equal(t, "USAGE", response.EntryType)
		assert.Equal(t, decimal.NewFromInt(20), response.PreviousQuantity)
		assert.Equal(t, decimal.NewFromInt(17), response.NewQuantity)
		assert.False(t, response.Clamped)
		assert.NotEqual(t, uuid.Nil, response.EventID)
		levelRepo.AssertExpectations(t)
		eventRepo.AssertExpectations(t)
	})

	t.Run("reports clamping when usage exceeds stock", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 2), nil)
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(2)), decimalEq(decimal.Zero)).
			Return(true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(5),
		})

		require.NoError(t, err)
		assert.True(t, response.Clamped)
		assert.True(t, response.NewQuantity.IsZero())
	})

	t.Run("logs an advisory when usage exceeds the observed level", func(t *testing.T) {
		core, logs := observer.New(zapcore.InfoLevel)
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 2), nil)
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(true, nil).Once()

		zl := zap.New(core)
		counter := NewCounterService(levelRepo, zl).WithBackoff(noWaitBackoff())
		service := NewStockService(levelRepo, eventRepo, counter, zl)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(5),
		})

		require.NoError(t, err)
		entries := logs.FilterMessage("Requested amount exceeds the observed stock level").All()
		require.Len(t, entries, 1)
		assert.Equal(t, "2", entries[0].ContextMap()["observed_quantity"])
	})

	t.Run("rejects non-positive amounts without any repository access", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		service := newTestStockService(levelRepo, eventRepo)

		for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-4)} {
			_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
				ItemID: itemID,
				Amount: amount,
			})

			require.Error(t, err)
			assert.True(t, errors.Is(err, shared.ErrInvalidAmount))
		}
		levelRepo.AssertNotCalled(t, "FindByItem", mock.Anything, mock.Anything, mock.Anything)
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("fails with not found before writing to the ledger", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(nil, shared.ErrNotFound).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(1),
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("does not touch the counter when the ledger write fails", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 20), nil).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).
			Return(errors.New("insert failed")).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(3),
		})

		require.Error(t, err)
		assert.Equal(t, "LOG_WRITE_FAILED", domainErrorCode(t, err))
		levelRepo.AssertNotCalled(t, "ConditionalWrite", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reports counter update failure and keeps the ledger entry", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 20), nil)
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(false, errors.New("connection reset")).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(3),
		})

		require.Error(t, err)
		assert.Equal(t, "COUNTER_UPDATE_FAILED", domainErrorCode(t, err))
		eventRepo.AssertExpectations(t)
	})

	t.Run("reports counter update failure when attempts are exhausted", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 20), nil)
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(false, nil).Times(3)

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(3),
		})

		require.Error(t, err)
		assert.Equal(t, "COUNTER_UPDATE_FAILED", domainErrorCode(t, err))
		levelRepo.AssertExpectations(t)
	})
}

func TestStockService_Idempotency(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	newServiceWithStore := func(levelRepo stock.StockLevelRepository, eventRepo stock.UsageEventRepository, store shared.IdempotencyStore) *StockService {
		counter := NewCounterService(levelRepo, zap.NewNop()).WithBackoff(noWaitBackoff())
		return NewStockService(levelRepo, eventRepo, counter, zap.NewNop(),
			WithIdempotencyStore(store, time.Minute))
	}

	t.Run("first request with a key is recorded", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, tenantID.String()+":req-42", time.Minute).
			Return(true, nil).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(true, nil).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		response, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(2),
			IdempotencyKey: "req-42",
		})

		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(8), response.NewQuantity)
		store.AssertExpectations(t)
	})

	t.Run("duplicate key is rejected before the ledger write", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, tenantID.String()+":req-42", time.Minute).
			Return(false, nil).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(2),
			IdempotencyKey: "req-42",
		})

		require.Error(t, err)
		assert.Equal(t, "DUPLICATE_REQUEST", domainErrorCode(t, err))
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
		levelRepo.AssertNotCalled(t, "ConditionalWrite", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure blocks the operation", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.New("redis unavailable")).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(2),
			IdempotencyKey: "req-42",
		})

		require.Error(t, err)
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("requests without a key skip the store", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(true, nil).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(2),
		})

		require.NoError(t, err)
		store.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("a failed ledger write releases the key for retry", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		key := tenantID.String() + ":req-42"
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, key, time.Minute).
			Return(true, nil).Twice()
		store.On("Release", mock.Anything, key).Return(nil).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).
			Return(errors.New("disk full")).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(true, nil).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		req := RecordUsageRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(2),
			IdempotencyKey: "req-42",
		}

		_, err := service.RecordUsage(context.Background(), tenantID, req)
		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrLogWriteFailed))

		// The retry with the same key must not be rejected as a duplicate.
		response, err := service.RecordUsage(context.Background(), tenantID, req)
		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(8), response.NewQuantity)
		store.AssertExpectations(t)
	})

	t.Run("a failed counter update releases the key as well", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		key := tenantID.String() + ":req-43"
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, key, time.Minute).
			Return(true, nil).Once()
		store.On("Release", mock.Anything, key).Return(nil).Once()
		eventRepo.On("Append", mock.Anything, mock.Anything).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, mock.Anything, mock.Anything).
			Return(false, nil)

		service := newServiceWithStore(levelRepo, eventRepo, store)
		_, err := service.RecordUsage(context.Background(), tenantID, RecordUsageRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(2),
			IdempotencyKey: "req-43",
		})

		require.Error(t, err)
		assert.Equal(t, "COUNTER_UPDATE_FAILED", domainErrorCode(t, err))
		store.AssertExpectations(t)
	})

	t.Run("restock honors the key as well", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		store := new(MockIdempotencyStore)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 10), nil)
		store.On("MarkProcessed", mock.Anything, tenantID.String()+":restock-7", time.Minute).
			Return(false, nil).Once()

		service := newServiceWithStore(levelRepo, eventRepo, store)
		_, err := service.Restock(context.Background(), tenantID, RestockRequest{
			ItemID:         itemID,
			Amount:         decimal.NewFromInt(5),
			IdempotencyKey: "restock-7",
		})

		require.Error(t, err)
		assert.Equal(t, "DUPLICATE_REQUEST", domainErrorCode(t, err))
		eventRepo.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestStockService_Restock(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("writes the ledger entry then increments the level", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 5), nil)
		eventRepo.On("Append", mock.Anything, mock.MatchedBy(func(e *stock.UsageEvent) bool {
			return e.EntryType == stock.EntryTypeRestock && e.Amount.Equal(decimal.NewFromInt(50))
		})).Return(nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(5)), decimalEq(decimal.NewFromInt(55))).
			Return(true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.Restock(context.Background(), tenantID, RestockRequest{
			ItemID: itemID,
			Amount: decimal.NewFromInt(50),
		})

		require.NoError(t, err)
		assert.Equal(t, "RESTOCK", response.EntryType)
		assert.Equal(t, decimal.NewFromInt(55), response.NewQuantity)
		assert.False(t, response.Clamped)
	})

	t.Run("rejects zero amount", func(t *testing.T) {
		service := newTestStockService(new(MockStockLevelRepository), new(MockUsageEventRepository))

		_, err := service.Restock(context.Background(), tenantID, RestockRequest{
			ItemID: itemID,
			Amount: decimal.Zero,
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidAmount))
	})
}

func TestStockService_Reconcile(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("rewrites the level from the ledger", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		eventRepo.On("SumSignedByItem", mock.Anything, tenantID, itemID).
			Return(decimal.NewFromInt(12), nil).Once()
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 9), nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(9)), decimalEq(decimal.NewFromInt(12))).
			Return(true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.Reconcile(context.Background(), tenantID, itemID)

		require.NoError(t, err)
		assert.True(t, response.Adjusted)
		assert.Equal(t, decimal.NewFromInt(9), response.PreviousQuantity)
		assert.Equal(t, decimal.NewFromInt(12), response.ReconciledQuantity)
		levelRepo.AssertExpectations(t)
	})

	t.Run("floors a negative ledger sum at zero", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		eventRepo.On("SumSignedByItem", mock.Anything, tenantID, itemID).
			Return(decimal.NewFromInt(-7), nil).Once()
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 3), nil).Once()
		levelRepo.On("ConditionalWrite", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(3)), decimalEq(decimal.Zero)).
			Return(true, nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.Reconcile(context.Background(), tenantID, itemID)

		require.NoError(t, err)
		assert.True(t, response.Adjusted)
		assert.True(t, response.ReconciledQuantity.IsZero())
	})

	t.Run("reports no adjustment when the level already matches", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		eventRepo.On("SumSignedByItem", mock.Anything, tenantID, itemID).
			Return(decimal.NewFromInt(9), nil).Once()
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 9), nil).Once()

		service := newTestStockService(levelRepo, eventRepo)
		response, err := service.Reconcile(context.Background(), tenantID, itemID)

		require.NoError(t, err)
		assert.False(t, response.Adjusted)
		levelRepo.AssertNotCalled(t, "ConditionalWrite", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("fails for an unknown item", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		eventRepo := new(MockUsageEventRepository)
		eventRepo.On("SumSignedByItem", mock.Anything, tenantID, itemID).
			Return(decimal.Zero, nil).Once()
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(nil, shared.ErrNotFound).Once()

		service := newTestStockService(levelRepo, eventRepo)
		_, err := service.Reconcile(context.Background(), tenantID, itemID)

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

func TestStockService_Queries(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("GetLevel returns the level", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 8), nil).Once()

		service := newTestStockService(levelRepo, new(MockUsageEventRepository))
		response, err := service.GetLevel(context.Background(), tenantID, itemID)

		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(8), response.Quantity)
	})

	t.Run("ListLevels returns levels with total", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		levels := []stock.StockLevel{*newTestLevel(t, tenantID, itemID, 8)}
		levelRepo.On("FindAllForTenant", mock.Anything, tenantID, mock.Anything).
			Return(levels, nil).Once()
		levelRepo.On("CountForTenant", mock.Anything, tenantID, mock.Anything).
			Return(int64(1), nil).Once()

		service := newTestStockService(levelRepo, new(MockUsageEventRepository))
		responses, total, err := service.ListLevels(context.Background(), tenantID, LevelListFilter{})

		require.NoError(t, err)
		assert.Len(t, responses, 1)
		assert.Equal(t, int64(1), total)
	})

	t.Run("ListBelowMinimum uses the threshold query", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		levelRepo.On("FindBelowMinimum", mock.Anything, tenantID, mock.Anything).
			Return([]stock.StockLevel{}, nil).Once()
		levelRepo.On("CountForTenant", mock.Anything, tenantID, mock.Anything).
			Return(int64(0), nil).Once()

		service := newTestStockService(levelRepo, new(MockUsageEventRepository))
		_, _, err := service.ListBelowMinimum(context.Background(), tenantID, LevelListFilter{})

		require.NoError(t, err)
		levelRepo.AssertExpectations(t)
	})

	t.Run("ListUsage scopes to an item when given", func(t *testing.T) {
		eventRepo := new(MockUsageEventRepository)
		event, err := stock.NewUsageEvent(tenantID, itemID, stock.EntryTypeUsage, decimal.NewFromInt(2))
		require.NoError(t, err)
		eventRepo.On("FindByItem", mock.Anything, tenantID, itemID, mock.Anything).
			Return([]stock.UsageEvent{*event}, nil).Once()
		eventRepo.On("CountByItem", mock.Anything, tenantID, itemID, mock.Anything).
			Return(int64(1), nil).Once()

		service := newTestStockService(new(MockStockLevelRepository), eventRepo)
		responses, total, err := service.ListUsage(context.Background(), tenantID, UsageListFilter{ItemID: itemID.String()})

		require.NoError(t, err)
		assert.Len(t, responses, 1)
		assert.Equal(t, int64(1), total)
		assert.Equal(t, "USAGE", responses[0].EntryType)
	})

	t.Run("ListUsage rejects a malformed item filter", func(t *testing.T) {
		eventRepo := new(MockUsageEventRepository)

		service := newTestStockService(new(MockStockLevelRepository), eventRepo)
		_, _, err := service.ListUsage(context.Background(), tenantID, UsageListFilter{ItemID: "not-a-uuid"})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		eventRepo.AssertNotCalled(t, "FindByItem", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ListUsage lists the whole tenant otherwise", func(t *testing.T) {
		eventRepo := new(MockUsageEventRepository)
		eventRepo.On("FindAllForTenant", mock.Anything, tenantID, mock.Anything).
			Return([]stock.UsageEvent{}, nil).Once()
		eventRepo.On("CountForTenant", mock.Anything, tenantID, mock.Anything).
			Return(int64(0), nil).Once()

		service := newTestStockService(new(MockStockLevelRepository), eventRepo)
		_, _, err := service.ListUsage(context.Background(), tenantID, UsageListFilter{})

		require.NoError(t, err)
		eventRepo.AssertExpectations(t)
	})
}

func TestStockService_SetMinQuantity(t *testing.T) {
	tenantID := uuid.New()
	itemID := uuid.New()

	t.Run("updates the threshold", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 3), nil).Once()
		levelRepo.On("SetMinQuantity", mock.Anything, tenantID, itemID, decimalEq(decimal.NewFromInt(10))).
			Return(nil).Once()

		service := newTestStockService(levelRepo, new(MockUsageEventRepository))
		response, err := service.SetMinQuantity(context.Background(), tenantID, SetMinQuantityRequest{
			ItemID:      itemID,
			MinQuantity: decimal.NewFromInt(10),
		})

		require.NoError(t, err)
		assert.Equal(t, decimal.NewFromInt(10), response.MinQuantity)
		assert.True(t, response.IsBelowMinimum)
		levelRepo.AssertExpectations(t)
	})

	t.Run("rejects a negative threshold", func(t *testing.T) {
		levelRepo := new(MockStockLevelRepository)
		levelRepo.On("FindByItem", mock.Anything, tenantID, itemID).
			Return(newTestLevel(t, tenantID, itemID, 3), nil).Once()

		service := newTestStockService(levelRepo, new(MockUsageEventRepository))
		_, err := service.SetMinQuantity(context.Background(), tenantID, SetMinQuantityRequest{
			ItemID:      itemID,
			MinQuantity: decimal.NewFromInt(-2),
		})

		require.Error(t, err)
		levelRepo.AssertNotCalled(t, "SetMinQuantity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
