package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/salonsuite/backend/internal/domain/shared"
	"github.com/salonsuite/backend/internal/domain/stock"
	"github.com/salonsuite/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// DefaultMaxAttempts is the attempt budget for one ApplyDelta call
	DefaultMaxAttempts = 3
)

// ApplyDeltaResult describes a counter update that took effect.
type ApplyDeltaResult struct {
	PreviousQuantity decimal.Decimal
	NewQuantity      decimal.Decimal
	Clamped          bool
	Attempts         int
}

// CounterService applies signed deltas to stock levels.
//
// Each attempt reads the current quantity, computes the floored target,
// and issues a conditional write that only applies if the quantity is
// still what was read. A write that does not apply means another writer
// got there first; the service backs off and retries up to maxAttempts
// times in total before giving up with ErrConcurrencyExhausted.
type CounterService struct {
	levelRepo      stock.StockLevelRepository
	logger         *zap.Logger
	maxAttempts    int
	attemptTimeout time.Duration
	backoff        BackoffPolicy
	metrics        MetricsRecorder
}

// NewCounterService creates a CounterService with the default retry budget.
func NewCounterService(levelRepo stock.StockLevelRepository, logger *zap.Logger) *CounterService {
	return &CounterService{
		levelRepo:   levelRepo,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoffPolicy(),
		metrics:     noopMetrics{},
	}
}

// WithRetryBudget overrides the attempt budget and per-attempt timeout.
// A non-positive maxAttempts keeps the default; a zero timeout disables
// per-attempt deadlines.
func (s *CounterService) WithRetryBudget(maxAttempts int, attemptTimeout time.Duration) *CounterService {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	s.attemptTimeout = attemptTimeout
	return s
}

// WithBackoff overrides the backoff policy between attempts.
func (s *CounterService) WithBackoff(policy BackoffPolicy) *CounterService {
	s.backoff = policy
	return s
}

// WithMetrics sets the metrics recorder.
func (s *CounterService) WithMetrics(metrics MetricsRecorder) *CounterService {
	if metrics != nil {
		s.metrics = metrics
	}
	return s
}

// MaxAttempts returns the configured attempt budget.
func (s *CounterService) MaxAttempts() int {
	return s.maxAttempts
}

// ApplyDelta applies a signed delta to the stock level of a tenant-item
// combination. Positive deltas add stock, negative deltas consume it.
// The resulting quantity never goes below zero: a delta larger than the
// current stock floors the quantity at zero and reports Clamped.
//
// A zero delta is rejected before any repository access.
func (s *CounterService) ApplyDelta(ctx context.Context, tenantID, itemID uuid.UUID, delta decimal.Decimal) (*ApplyDeltaResult, error) {
	if delta.IsZero() {
		return nil, shared.ErrInvalidDelta
	}

	ctx, span := telemetry.StartSpan(ctx, "stock.apply_delta",
		telemetry.WithAttribute(telemetry.SpanAttrItemID, itemID.String()))
	defer span.End()

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := s.backoff.Wait(ctx, attempt-1); err != nil {
				telemetry.RecordError(span, err)
				return nil, err
			}
		}

		result, applied, err := s.tryApply(ctx, tenantID, itemID, delta, attempt)
		if err != nil {
			// A per-attempt deadline consumes the attempt but is not
			// terminal while the caller's context is still alive.
			if s.attemptTimeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				telemetry.AddEvent(span, "attempt_timeout",
					telemetry.SpanAttrItemID, itemID.String(),
					"attempt", attempt)
				s.logger.Debug("Stock level attempt timed out, retrying",
					zap.String("tenant_id", tenantID.String()),
					zap.String("item_id", itemID.String()),
					zap.Int("attempt", attempt))
				continue
			}
			telemetry.RecordError(span, err)
			return nil, err
		}
		if applied {
			telemetry.SetAttributes(span,
				telemetry.SpanAttrAttempts, result.Attempts,
				telemetry.SpanAttrClamped, result.Clamped,
				telemetry.SpanAttrQuantity, result.NewQuantity.String())
			s.metrics.RecordApplyAttempts(ctx, tenantID, result.Attempts)
			if result.Clamped {
				s.metrics.RecordClamped(ctx, tenantID, itemID)
			}
			return result, nil
		}

		telemetry.AddEvent(span, "counter_contention",
			telemetry.SpanAttrItemID, itemID.String(),
			"attempt", attempt)
		s.metrics.RecordContentionLost(ctx, tenantID)
		s.logger.Debug("Stock level changed between read and write, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.String("item_id", itemID.String()),
			zap.Int("attempt", attempt))
	}

	telemetry.RecordError(span, shared.ErrConcurrencyExhausted)
	s.metrics.RecordRetriesExhausted(ctx, tenantID, itemID)
	s.logger.Warn("Stock level update attempts exhausted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("item_id", itemID.String()),
		zap.Int("max_attempts", s.maxAttempts))
	return nil, shared.ErrConcurrencyExhausted
}

func (s *CounterService) tryApply(ctx context.Context, tenantID, itemID uuid.UUID, delta decimal.Decimal, attempt int) (*ApplyDeltaResult, bool, error) {
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	level, err := s.levelRepo.FindByItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, false, err
	}

	next, clamped := level.NextQuantity(delta)

	applied, err := s.levelRepo.ConditionalWrite(ctx, tenantID, itemID, level.Quantity, next)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		return nil, false, nil
	}

	return &ApplyDeltaResult{
		PreviousQuantity: level.Quantity,
		NewQuantity:      next,
		Clamped:          clamped,
		Attempts:         attempt,
	}, true, nil
}
