// Spans for database statements, built on otelgorm.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls how database statements are traced.
type DBTracingConfig struct {
	Enabled          bool
	LogFullSQL       bool          // full statements in spans, dev environments only
	SlowQueryThresh  time.Duration // queries above it get a slow query event
	DBSystem         string
	WithoutVariables bool          // strip bind parameters from recorded SQL
}

// DefaultDBTracingConfig keeps tracing off and bind parameters out of spans.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:          false,
		LogFullSQL:       false,
		SlowQueryThresh:  200 * time.Millisecond,
		DBSystem:         "postgresql",
		WithoutVariables: true,
	}
}

// DBTracingPlugin is a GORM plugin that wires otelgorm spans and annotates
// them with row counts, table names and slow query events.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin builds the plugin. A nil logger is replaced with a nop.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{
		config: cfg,
		logger: logger,
	}
}

// Name returns the plugin name.
func (p *DBTracingPlugin) Name() string {
	return "db_tracing"
}

// Initialize registers the otelgorm plugin plus the span annotation callbacks.
// When tracing is disabled the plugin registers nothing and every query runs
// untouched.
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(p.config.DBSystem),
	}

	// Bind parameters stay out of spans unless full SQL is requested.
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)

	return nil
}

// registerCallbacks hooks every GORM operation with a timing callback before
// the statement runs and a span annotation callback after it completes.
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()

	if err := firstErr(
		cb.Create().Before("gorm:create").Register("db_tracing:before_create", p.markStart),
		cb.Query().Before("gorm:query").Register("db_tracing:before_query", p.markStart),
		cb.Update().Before("gorm:update").Register("db_tracing:before_update", p.markStart),
		cb.Delete().Before("gorm:delete").Register("db_tracing:before_delete", p.markStart),
		cb.Row().Before("gorm:row").Register("db_tracing:before_row", p.markStart),
		cb.Raw().Before("gorm:raw").Register("db_tracing:before_raw", p.markStart),
	); err != nil {
		return err
	}

	return firstErr(
		cb.Create().After("gorm:create").Register("db_tracing:after_create", p.annotateSpan),
		cb.Query().After("gorm:query").Register("db_tracing:after_query", p.annotateSpan),
		cb.Update().After("gorm:update").Register("db_tracing:after_update", p.annotateSpan),
		cb.Delete().After("gorm:delete").Register("db_tracing:after_delete", p.annotateSpan),
		cb.Row().After("gorm:row").Register("db_tracing:after_row", p.annotateSpan),
		cb.Raw().After("gorm:raw").Register("db_tracing:after_raw", p.annotateSpan),
	)
}

// markStart records the query start time so annotateSpan can compute elapsed time.
func (p *DBTracingPlugin) markStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotateSpan enriches the active span with the statement outcome. Record
// not found is expected behavior and is never marked as a span error.
func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}

	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

// firstErr returns the first non-nil error from a callback registration batch.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// queryStartTimeKey is the context key for storing query start time.
type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

// WithQueryStartTime returns a context with the query start time set.
// Useful when a caller issues raw SQL outside of GORM callbacks but still
// wants slow query detection on its span.
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}
