package stock

import (
	"context"

	"github.com/google/uuid"
)

// MetricsRecorder receives operational signals from the stock services.
// The telemetry layer provides an OpenTelemetry-backed implementation;
// services hold a no-op recorder unless one is injected.
type MetricsRecorder interface {
	// RecordUsageRecorded counts a successful usage or restock operation
	RecordUsageRecorded(ctx context.Context, tenantID uuid.UUID, entryType string)
	// RecordClamped counts a counter update floored at zero
	RecordClamped(ctx context.Context, tenantID, itemID uuid.UUID)
	// RecordContentionLost counts a conditional write lost to another writer
	RecordContentionLost(ctx context.Context, tenantID uuid.UUID)
	// RecordRetriesExhausted counts an update that ran out of attempts
	RecordRetriesExhausted(ctx context.Context, tenantID, itemID uuid.UUID)
	// RecordApplyAttempts observes how many attempts a successful update took
	RecordApplyAttempts(ctx context.Context, tenantID uuid.UUID, attempts int)
	// RecordReconcile counts a reconciliation run and whether it adjusted the counter
	RecordReconcile(ctx context.Context, tenantID uuid.UUID, adjusted bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordUsageRecorded(context.Context, uuid.UUID, string)       {}
func (noopMetrics) RecordClamped(context.Context, uuid.UUID, uuid.UUID)          {}
func (noopMetrics) RecordContentionLost(context.Context, uuid.UUID)              {}
func (noopMetrics) RecordRetriesExhausted(context.Context, uuid.UUID, uuid.UUID) {}
func (noopMetrics) RecordApplyAttempts(context.Context, uuid.UUID, int)          {}
func (noopMetrics) RecordReconcile(context.Context, uuid.UUID, bool)             {}
