// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// StockMetrics provides business metrics for the stock management system.
// It tracks ledger activity, counter contention, and stock health.
type StockMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	usageRecordedTotal    *Counter
	clampedTotal          *Counter
	contentionLostTotal   *Counter
	retriesExhaustedTotal *Counter
	reconcileTotal        *Counter

	// Histogram metrics
	applyAttempts *Histogram

	// Gauge metrics (point-in-time values)
	lowStockCount  *Gauge
	zeroStockCount *Gauge

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	// Data providers for periodic collection
	stockProvider StockMetricsProvider
}

// StockMetricsProvider provides stock level data for periodic metrics collection.
// This interface allows the telemetry layer to query stock state without
// depending on the stock domain directly.
type StockMetricsProvider interface {
	// GetLowStockCount returns count of items below their minimum threshold for a tenant
	GetLowStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// GetZeroStockCount returns count of items whose counter sits at zero for a tenant
	GetZeroStockCount(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// StockMetricsConfig holds configuration for stock metrics.
type StockMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 5 minutes
	StockProvider   StockMetricsProvider
}

// NewStockMetrics creates a new StockMetrics instance.
func NewStockMetrics(cfg StockMetricsConfig) (*StockMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &StockMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		stopChan:      make(chan struct{}),
		stockProvider: cfg.StockProvider,
	}

	var err error

	// Ledger metrics
	sm.usageRecordedTotal, err = NewCounter(
		cfg.Meter,
		"stock_usage_recorded_total",
		"Total number of ledger entries recorded",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	sm.clampedTotal, err = NewCounter(
		cfg.Meter,
		"stock_clamped_total",
		"Total number of counter writes clamped at zero",
		"{writes}",
	)
	if err != nil {
		return nil, err
	}

	// Contention metrics
	sm.contentionLostTotal, err = NewCounter(
		cfg.Meter,
		"stock_contention_lost_total",
		"Total number of conditional writes lost to a concurrent writer",
		"{writes}",
	)
	if err != nil {
		return nil, err
	}

	sm.retriesExhaustedTotal, err = NewCounter(
		cfg.Meter,
		"stock_retries_exhausted_total",
		"Total number of counter updates that gave up after the retry budget",
		"{updates}",
	)
	if err != nil {
		return nil, err
	}

	sm.reconcileTotal, err = NewCounter(
		cfg.Meter,
		"stock_reconcile_total",
		"Total number of reconcile operations",
		"{operations}",
	)
	if err != nil {
		return nil, err
	}

	sm.applyAttempts, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "stock_apply_attempts",
		Description: "Number of attempts taken to apply a counter delta",
		Unit:        "{attempts}",
		Boundaries:  AttemptBuckets,
	})
	if err != nil {
		return nil, err
	}

	// Stock health gauge metrics
	sm.lowStockCount, err = NewGauge(
		cfg.Meter,
		"stock_low_stock_count",
		"Number of items below their minimum threshold",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	sm.zeroStockCount, err = NewGauge(
		cfg.Meter,
		"stock_zero_stock_count",
		"Number of items with a counter at zero",
		"{items}",
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// =============================================================================
// Ledger Metrics
// =============================================================================

// RecordUsageRecorded records a successfully appended ledger entry.
// This should be called from the application layer after the entry is durable.
func (sm *StockMetrics) RecordUsageRecorded(ctx context.Context, tenantID uuid.UUID, entryType string) {
	sm.usageRecordedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrEntryType.String(entryType),
	)
}

// RecordClamped records a counter write that was floored at zero.
func (sm *StockMetrics) RecordClamped(ctx context.Context, tenantID, itemID uuid.UUID) {
	sm.clampedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrItemID.String(itemID.String()),
	)
}

// =============================================================================
// Contention Metrics
// =============================================================================

// RecordContentionLost records a conditional write that observed a stale quantity.
func (sm *StockMetrics) RecordContentionLost(ctx context.Context, tenantID uuid.UUID) {
	sm.contentionLostTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordRetriesExhausted records a counter update that gave up after its retry budget.
func (sm *StockMetrics) RecordRetriesExhausted(ctx context.Context, tenantID, itemID uuid.UUID) {
	sm.retriesExhaustedTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrItemID.String(itemID.String()),
	)
}

// RecordApplyAttempts records how many attempts a counter update took to land.
func (sm *StockMetrics) RecordApplyAttempts(ctx context.Context, tenantID uuid.UUID, attempts int) {
	sm.applyAttempts.Record(ctx, float64(attempts),
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordReconcile records a reconcile operation and whether it adjusted the counter.
func (sm *StockMetrics) RecordReconcile(ctx context.Context, tenantID uuid.UUID, adjusted bool) {
	outcome := "noop"
	if adjusted {
		outcome = "adjusted"
	}
	sm.reconcileTotal.Inc(ctx,
		AttrTenantID.String(tenantID.String()),
		AttrOutcome.String(outcome),
	)
}

// =============================================================================
// Stock Health Metrics
// =============================================================================

// RecordLowStockCount records the number of items below their minimum threshold.
// This is a gauge metric that should be updated periodically.
func (sm *StockMetrics) RecordLowStockCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	sm.lowStockCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// RecordZeroStockCount records the number of items with a counter at zero.
// This is a gauge metric that should be updated periodically.
func (sm *StockMetrics) RecordZeroStockCount(ctx context.Context, tenantID uuid.UUID, count int64) {
	sm.zeroStockCount.Record(ctx, count,
		AttrTenantID.String(tenantID.String()),
	)
}

// =============================================================================
// Periodic Collection
// =============================================================================

// TenantProvider provides tenant IDs for periodic metrics collection.
type TenantProvider interface {
	GetActiveTenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StartPeriodicCollection starts periodic collection of gauge metrics.
// It collects stock health metrics every interval (default: 5 minutes).
// This is non-blocking - use Stop() to stop collection.
func (sm *StockMetrics) StartPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	sm.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}

		go sm.runPeriodicCollection(ctx, tenantProvider, interval)
	})
}

// runPeriodicCollection runs the periodic collection loop.
func (sm *StockMetrics) runPeriodicCollection(ctx context.Context, tenantProvider TenantProvider, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	sm.collectStockMetrics(ctx, tenantProvider)

	for {
		select {
		case <-sm.stopChan:
			sm.logger.Info("Stopping periodic stock metrics collection")
			return
		case <-ctx.Done():
			sm.logger.Info("Context cancelled, stopping periodic stock metrics collection")
			return
		case <-ticker.C:
			sm.collectStockMetrics(ctx, tenantProvider)
		}
	}
}

// collectStockMetrics collects stock health gauge metrics for all tenants.
func (sm *StockMetrics) collectStockMetrics(ctx context.Context, tenantProvider TenantProvider) {
	if sm.stockProvider == nil {
		sm.logger.Debug("No stock provider configured, skipping stock metrics collection")
		return
	}

	tenantIDs, err := tenantProvider.GetActiveTenantIDs(ctx)
	if err != nil {
		sm.logger.Error("Failed to get tenant IDs for metrics collection", zap.Error(err))
		return
	}

	for _, tenantID := range tenantIDs {
		sm.collectTenantStockMetrics(ctx, tenantID)
	}
}

// collectTenantStockMetrics collects stock health metrics for a single tenant.
func (sm *StockMetrics) collectTenantStockMetrics(ctx context.Context, tenantID uuid.UUID) {
	lowStock, err := sm.stockProvider.GetLowStockCount(ctx, tenantID)
	if err != nil {
		sm.logger.Warn("Failed to get low stock count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		sm.RecordLowStockCount(ctx, tenantID, lowStock)
	}

	zeroStock, err := sm.stockProvider.GetZeroStockCount(ctx, tenantID)
	if err != nil {
		sm.logger.Warn("Failed to get zero stock count for tenant",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err),
		)
	} else {
		sm.RecordZeroStockCount(ctx, tenantID, zeroStock)
	}
}

// Stop stops the periodic collection.
func (sm *StockMetrics) Stop() {
	sm.stopOnce.Do(func() {
		close(sm.stopChan)
	})
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewStockMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
