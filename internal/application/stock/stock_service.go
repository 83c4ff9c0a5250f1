package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/salonsuite/backend/internal/infrastructure/logger"
	"github.com/salonsuite/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultIdempotencyTTL is how long a processed idempotency key is
// remembered before a retry with the same key is accepted again.
const DefaultIdempotencyTTL = 24 * time.Hour

// StockService handles stock tracking operations: item registration,
// usage and restock recording, level queries, usage history, and
// ledger reconciliation.
//
// Usage and restock follow a log-then-mutate order: the ledger entry is
// written first, then the counter is updated. If the ledger write fails
// the counter is never touched. If the counter update fails after the
// ledger write, the operation reports COUNTER_UPDATE_FAILED and the
// ledger entry stays in place for reconciliation.
type StockService struct {
	levelRepo   stock.StockLevelRepository
	eventRepo   stock.UsageEventRepository
	counter     *CounterService
	logger      *zap.Logger
	idempotency shared.IdempotencyStore
	idemTTL     time.Duration
	metrics     MetricsRecorder
}

// StockServiceOption configures optional StockService behavior
type StockServiceOption func(*StockService)

// WithIdempotencyStore enables duplicate detection for usage and restock
// requests that carry an idempotency key. A non-positive ttl falls back
// to DefaultIdempotencyTTL.
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) StockServiceOption {
	return func(s *StockService) {
		s.idempotency = store
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// WithMetrics attaches a MetricsRecorder. Passing nil keeps the no-op
// recorder.
func WithMetrics(metrics MetricsRecorder) StockServiceOption {
	return func(s *StockService) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// NewStockService creates a new StockService
func NewStockService(
	levelRepo stock.StockLevelRepository,
	eventRepo stock.UsageEventRepository,
	counter *CounterService,
	logger *zap.Logger,
	opts ...StockServiceOption,
) *StockService {
	s := &StockService{
		levelRepo: levelRepo,
		eventRepo: eventRepo,
		counter:   counter,
		logger:    logger,
		idemTTL:   DefaultIdempotencyTTL,
		metrics:   noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterItem starts tracking stock for an item. Registering an already
// tracked item returns the existing level untouched. A positive initial
// quantity is recorded as a restock ledger entry so the ledger fully
// determines the counter value.
func (s *StockService) RegisterItem(ctx context.Context, tenantID uuid.UUID, req RegisterItemRequest) (*StockLevelResponse, error) {
	if req.InitialQuantity.IsNegative() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Initial quantity cannot be negative")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "register_item",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, req.ItemID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrQuantity, req.InitialQuantity.String()))
	defer span.End()

	level, created, err := s.levelRepo.GetOrCreate(ctx, tenantID, req.ItemID, req.InitialQuantity)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if created && req.InitialQuantity.IsPositive() {
		event, err := stock.NewUsageEvent(tenantID, req.ItemID, stock.EntryTypeRestock, req.InitialQuantity)
		if err != nil {
			return nil, err
		}
		if req.OperatorID != nil {
			event.WithOperatorID(*req.OperatorID)
		}
		event.WithNote("Initial stock")
		if err := s.eventRepo.Append(ctx, event); err != nil {
			s.logger.Error("Failed to write initial stock ledger entry",
				zap.String("item_id", req.ItemID.String()),
				zap.Error(err))
			telemetry.RecordError(span, err)
			return nil, shared.ErrLogWriteFailed
		}
	}

	if created && req.MinQuantity != nil {
		if err := level.SetMinQuantity(*req.MinQuantity); err != nil {
			return nil, err
		}
		if err := s.levelRepo.SetMinQuantity(ctx, tenantID, req.ItemID, *req.MinQuantity); err != nil {
			return nil, err
		}
	}

	if created {
		s.logger.Info("Stock tracking registered",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", req.ItemID.String()),
			zap.String("initial_quantity", req.InitialQuantity.String()))
	}

	response := ToStockLevelResponse(level)
	return &response, nil
}

// RecordUsage records product consumption: it appends a usage entry to
// the ledger, then decrements the stock level by the used amount.
func (s *StockService) RecordUsage(ctx context.Context, tenantID uuid.UUID, req RecordUsageRequest) (*UsageRecordedResponse, error) {
	return s.record(ctx, tenantID, stock.EntryTypeUsage, req.ItemID, req.Amount, req.Note, req.OperatorID, req.IdempotencyKey)
}

// Restock records incoming stock: it appends a restock entry to the
// ledger, then increments the stock level by the added amount.
func (s *StockService) Restock(ctx context.Context, tenantID uuid.UUID, req RestockRequest) (*UsageRecordedResponse, error) {
	return s.record(ctx, tenantID, stock.EntryTypeRestock, req.ItemID, req.Amount, req.Note, req.OperatorID, req.IdempotencyKey)
}

func (s *StockService) record(ctx context.Context, tenantID uuid.UUID, entryType stock.EntryType, itemID uuid.UUID, amount decimal.Decimal, note string, operatorID *uuid.UUID, idempotencyKey string) (*UsageRecordedResponse, error) {
	method := "record_usage"
	if entryType == stock.EntryTypeRestock {
		method = "restock"
	}
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", method,
		telemetry.WithAttribute(telemetry.SpanAttrItemID, itemID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrEntryType, entryType.String()),
		telemetry.WithAttribute(telemetry.SpanAttrAmount, amount.String()))
	defer span.End()

	event, err := stock.NewUsageEvent(tenantID, itemID, entryType, amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if operatorID != nil {
		event.WithOperatorID(*operatorID)
		telemetry.SetAttribute(span, telemetry.SpanAttrOperatorID, operatorID.String())
	}
	if note != "" {
		event.WithNote(note)
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrEventID, event.ID.String())

	// Trace and tenant correlation fields come from the request context.
	log := logger.WithLogger(ctx, s.logger)

	// Make sure the level exists before touching the ledger, so an unknown
	// item fails with NOT_FOUND instead of leaving an orphan entry.
	level, err := s.levelRepo.FindByItem(ctx, tenantID, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	// Advisory only. The observed quantity may be stale by the time the
	// conditional write lands; the authoritative clamp decision is made
	// inside the counter service.
	if entryType == stock.EntryTypeUsage && !level.CanFulfill(amount) {
		log.Info("Requested amount exceeds the observed stock level",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", itemID.String()),
			zap.String("amount", amount.String()),
			zap.String("observed_quantity", level.Quantity.String()))
	}

	// The key is claimed before the ledger write. A second request with
	// the same key is rejected without touching the ledger or the counter.
	// A failure after the claim releases the key again, so clients may
	// retry a request that never completed.
	var claimedKey string
	if idempotencyKey != "" && s.idempotency != nil {
		claimedKey = tenantID.String() + ":" + idempotencyKey
		isNew, err := s.idempotency.MarkProcessed(ctx, claimedKey, s.idemTTL)
		if err != nil {
			log.Error("Idempotency check failed",
				zap.String("tenant_id", tenantID.String()),
				zap.String("item_id", itemID.String()),
				zap.Error(err))
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !isNew {
			log.Warn("Duplicate usage request rejected",
				zap.String("tenant_id", tenantID.String()),
				zap.String("item_id", itemID.String()),
				zap.String("idempotency_key", idempotencyKey))
			telemetry.RecordError(span, shared.ErrDuplicateRequest)
			return nil, shared.ErrDuplicateRequest
		}
	}

	if err := s.eventRepo.Append(ctx, event); err != nil {
		log.Error("Failed to write usage ledger entry",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", itemID.String()),
			zap.String("entry_type", entryType.String()),
			zap.Error(err))
		telemetry.RecordError(span, err)
		s.releaseClaim(ctx, log, claimedKey)
		return nil, shared.ErrLogWriteFailed
	}

	result, err := s.counter.ApplyDelta(ctx, tenantID, itemID, event.SignedAmount())
	if err != nil {
		log.Error("Ledger entry written but stock level update failed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", itemID.String()),
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		telemetry.RecordError(span, err)
		s.releaseClaim(ctx, log, claimedKey)
		return nil, shared.NewCounterUpdateFailed(event.ID.String())
	}

	telemetry.SetAttribute(span, telemetry.SpanAttrClamped, result.Clamped)
	telemetry.SetOK(span)

	if result.Clamped {
		log.Warn("Stock level floored at zero",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", itemID.String()),
			zap.String("amount", amount.String()),
			zap.String("previous_quantity", result.PreviousQuantity.String()))
	}

	s.metrics.RecordUsageRecorded(ctx, tenantID, entryType.String())

	return &UsageRecordedResponse{
		EventID:          event.ID,
		ItemID:           itemID,
		EntryType:        entryType.String(),
		Amount:           amount,
		PreviousQuantity: result.PreviousQuantity,
		NewQuantity:      result.NewQuantity,
		Clamped:          result.Clamped,
		RecordedAt:       event.RecordedAt,
	}, nil
}

// releaseClaim returns an idempotency claim after a failed attempt. A
// release failure is logged but not surfaced; the original error is the
// one the caller needs to see.
func (s *StockService) releaseClaim(ctx context.Context, log *logger.ContextLogger, claimedKey string) {
	if claimedKey == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, claimedKey); err != nil {
		log.Warn("Failed to release idempotency key",
			zap.String("key", claimedKey),
			zap.Error(err))
	}
}

// GetLevel retrieves the stock level for one item
func (s *StockService) GetLevel(ctx context.Context, tenantID, itemID uuid.UUID) (*StockLevelResponse, error) {
	level, err := s.levelRepo.FindByItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// ListLevels retrieves stock levels with filtering and pagination
func (s *StockService) ListLevels(ctx context.Context, tenantID uuid.UUID, filter LevelListFilter) ([]StockLevelResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}

	var levels []stock.StockLevel
	var err error
	if filter.BelowMinimum != nil && *filter.BelowMinimum {
		domainFilter.Filters["below_minimum"] = true
		levels, err = s.levelRepo.FindBelowMinimum(ctx, tenantID, domainFilter)
	} else {
		levels, err = s.levelRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	}
	if err != nil {
		return nil, 0, err
	}

	total, err := s.levelRepo.CountForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	return ToStockLevelResponses(levels), total, nil
}

// ListBelowMinimum retrieves stock levels below their alert threshold
func (s *StockService) ListBelowMinimum(ctx context.Context, tenantID uuid.UUID, filter LevelListFilter) ([]StockLevelResponse, int64, error) {
	belowMin := true
	filter.BelowMinimum = &belowMin
	return s.ListLevels(ctx, tenantID, filter)
}

// SetMinQuantity updates the low-stock threshold for an item
func (s *StockService) SetMinQuantity(ctx context.Context, tenantID uuid.UUID, req SetMinQuantityRequest) (*StockLevelResponse, error) {
	level, err := s.levelRepo.FindByItem(ctx, tenantID, req.ItemID)
	if err != nil {
		return nil, err
	}
	if err := level.SetMinQuantity(req.MinQuantity); err != nil {
		return nil, err
	}
	if err := s.levelRepo.SetMinQuantity(ctx, tenantID, req.ItemID, req.MinQuantity); err != nil {
		return nil, err
	}
	response := ToStockLevelResponse(level)
	return &response, nil
}

// ListUsage retrieves ledger entries with filtering and pagination
func (s *StockService) ListUsage(ctx context.Context, tenantID uuid.UUID, filter UsageListFilter) ([]UsageEventResponse, int64, error) {
	domainFilter := shared.DefaultFilter()
	domainFilter.OrderBy = "recorded_at"
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		domainFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		domainFilter.OrderDir = filter.OrderDir
	}
	if filter.EntryType != "" {
		domainFilter.Filters["entry_type"] = filter.EntryType
	}
	if filter.StartDate != nil {
		domainFilter.Filters["start_date"] = *filter.StartDate
	}
	if filter.EndDate != nil {
		domainFilter.Filters["end_date"] = *filter.EndDate
	}

	var events []stock.UsageEvent
	var err error
	var total int64
	if filter.ItemID != "" {
		itemID, perr := uuid.Parse(filter.ItemID)
		if perr != nil {
			return nil, 0, shared.ErrInvalidInput
		}
		events, err = s.eventRepo.FindByItem(ctx, tenantID, itemID, domainFilter)
		if err != nil {
			return nil, 0, err
		}
		total, err = s.eventRepo.CountByItem(ctx, tenantID, itemID, domainFilter)
	} else {
		events, err = s.eventRepo.FindAllForTenant(ctx, tenantID, domainFilter)
		if err != nil {
			return nil, 0, err
		}
		total, err = s.eventRepo.CountForTenant(ctx, tenantID, domainFilter)
	}
	if err != nil {
		return nil, 0, err
	}

	return ToUsageEventResponses(events), total, nil
}

// Reconcile recomputes an item's stock level from its ledger and writes
// the recomputed value back, floored at zero. Used to repair the window
// where a ledger entry was written but the counter update failed.
func (s *StockService) Reconcile(ctx context.Context, tenantID, itemID uuid.UUID) (*ReconcileResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "reconcile",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, itemID.String()))
	defer span.End()

	sum, err := s.eventRepo.SumSignedByItem(ctx, tenantID, itemID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	reconciled, _ := stock.ClampQuantity(sum)
	telemetry.SetAttribute(span, telemetry.SpanAttrQuantity, reconciled.String())

	for attempt := 1; attempt <= s.counter.MaxAttempts(); attempt++ {
		level, err := s.levelRepo.FindByItem(ctx, tenantID, itemID)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}

		if level.Quantity.Equal(reconciled) {
			telemetry.SetAttribute(span, "adjusted", false)
			s.metrics.RecordReconcile(ctx, tenantID, false)
			return &ReconcileResponse{
				ItemID:             itemID,
				PreviousQuantity:   level.Quantity,
				ReconciledQuantity: reconciled,
				Adjusted:           false,
			}, nil
		}

		applied, err := s.levelRepo.ConditionalWrite(ctx, tenantID, itemID, level.Quantity, reconciled)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if applied {
			telemetry.SetAttribute(span, "adjusted", true)
			s.logger.Info("Stock level reconciled from ledger",
				zap.String("tenant_id", tenantID.String()),
				zap.String("item_id", itemID.String()),
				zap.String("previous_quantity", level.Quantity.String()),
				zap.String("reconciled_quantity", reconciled.String()))
			s.metrics.RecordReconcile(ctx, tenantID, true)
			return &ReconcileResponse{
				ItemID:             itemID,
				PreviousQuantity:   level.Quantity,
				ReconciledQuantity: reconciled,
				Adjusted:           true,
			}, nil
		}
		telemetry.AddEvent(span, "counter_contention",
			telemetry.SpanAttrItemID, itemID.String(),
			"attempt", attempt)
	}

	telemetry.RecordError(span, shared.ErrConcurrencyExhausted)
	return nil, shared.ErrConcurrencyExhausted
}
