// Package telemetry provides OpenTelemetry integration for database metrics collection.
package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultPoolStatsInterval  = 15 * time.Second
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool
	// SlowQueryThreshold marks queries above it as slow (default: 200ms).
	SlowQueryThreshold time.Duration
	// PoolStatsInterval sets how often connection pool stats are sampled (default: 15s).
	PoolStatsInterval time.Duration
}

// DefaultDBMetricsConfig returns default configuration for database metrics.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: defaultSlowQueryThreshold,
		PoolStatsInterval:  defaultPoolStatsInterval,
	}
}

func (cfg DBMetricsConfig) withDefaults() DBMetricsConfig {
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if cfg.PoolStatsInterval == 0 {
		cfg.PoolStatsInterval = defaultPoolStatsInterval
	}
	return cfg
}

// dbInstruments bundles the instruments DBMetrics records into.
type dbInstruments struct {
	poolConnections    *Gauge     // db_pool_connections, by pool state
	poolConnectionsMax *Gauge     // db_pool_connections_max
	queryTotal         *Counter   // db_query_total
	queryDuration      *Histogram // db_query_duration_seconds
	queryErrorTotal    *Counter   // db_query_error_total
	slowQueryTotal     *Counter   // db_slow_query_total
}

func newDBInstruments(meter metric.Meter) (dbInstruments, error) {
	var ins dbInstruments
	var err error

	if ins.poolConnections, err = NewGauge(meter,
		"db_pool_connections", "Number of connections in the pool by state", "{connection}"); err != nil {
		return ins, err
	}
	if ins.poolConnectionsMax, err = NewGauge(meter,
		"db_pool_connections_max", "Maximum number of connections in the pool", "{connection}"); err != nil {
		return ins, err
	}
	if ins.queryTotal, err = NewCounter(meter,
		"db_query_total", "Total number of database queries by operation type", "{query}"); err != nil {
		return ins, err
	}
	if ins.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency distribution in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return ins, err
	}
	if ins.queryErrorTotal, err = NewCounter(meter,
		"db_query_error_total", "Total number of failed database queries by operation type", "{query}"); err != nil {
		return ins, err
	}
	if ins.slowQueryTotal, err = NewCounter(meter,
		"db_slow_query_total", "Total number of database queries exceeding the slow query threshold", "{query}"); err != nil {
		return ins, err
	}

	return ins, nil
}

// DBMetrics records query and connection pool metrics for the database layer.
type DBMetrics struct {
	dbInstruments

	config DBMetricsConfig
	logger *zap.Logger

	mu    sync.RWMutex
	sqlDB *sql.DB

	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDBMetrics creates a new DBMetrics instance recording into the given meter.
func NewDBMetrics(meter metric.Meter, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	ins, err := newDBInstruments(meter)
	if err != nil {
		return nil, err
	}

	return &DBMetrics{
		dbInstruments: ins,
		config:        cfg.withDefaults(),
		logger:        logger,
		stopCh:        make(chan struct{}),
	}, nil
}

// SetSQLDB sets the sql.DB instance for connection pool metrics collection.
// This must be called before StartPoolStatsCollection.
func (m *DBMetrics) SetSQLDB(sqlDB *sql.DB) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sqlDB = sqlDB
}

// StartPoolStatsCollection starts a goroutine that periodically samples
// connection pool statistics. Call Stop to terminate it.
func (m *DBMetrics) StartPoolStatsCollection(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		m.logger.Warn("Pool stats collection needs SetSQLDB before start")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		ticker := time.NewTicker(m.config.PoolStatsInterval)
		defer ticker.Stop()

		// First sample right away so dashboards are not empty until the
		// first tick.
		m.samplePoolStats(ctx)

		for {
			select {
			case <-ticker.C:
				m.samplePoolStats(ctx)
			case <-m.stopCh:
				m.logger.Debug("Pool stats collection stopped")
				return
			case <-ctx.Done():
				m.logger.Debug("Pool stats collection cancelled")
				return
			}
		}
	}()

	m.logger.Info("Sampling database connection pool stats",
		zap.Duration("interval", m.config.PoolStatsInterval),
	)
}

// samplePoolStats records a snapshot of the connection pool gauges.
func (m *DBMetrics) samplePoolStats(ctx context.Context) {
	m.mu.RLock()
	sqlDB := m.sqlDB
	m.mu.RUnlock()

	if sqlDB == nil {
		return
	}

	stats := sqlDB.Stats()
	m.poolConnectionsMax.Record(ctx, int64(stats.MaxOpenConnections))

	// OpenConnections is Idle plus InUse. WaitCount is cumulative rather
	// than a current state, so it is not sampled here.
	for _, s := range []struct {
		state string
		count int64
	}{
		{"idle", int64(stats.Idle)},
		{"in_use", int64(stats.InUse)},
		{"open", int64(stats.OpenConnections)},
	} {
		m.poolConnections.Record(ctx, s.count, AttrDBState.String(s.state))
	}
}

// Stop terminates the pool stats goroutine. Safe to call multiple times.
func (m *DBMetrics) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
		m.logger.Debug("Database metrics collection shut down")
	})
}

// RecordQuery records metrics for a completed database query. A record not
// found result is a normal outcome for lookups and does not count as an
// error.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "UNKNOWN"
	}
	if table == "" {
		table = "unknown"
	}

	attrs := []attribute.KeyValue{
		AttrDBOperation.String(operation),
		AttrDBTable.String(table),
	}

	m.queryTotal.Inc(ctx, attrs...)
	m.queryDuration.RecordDuration(ctx, duration, attrs...)

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		m.queryErrorTotal.Inc(ctx, attrs...)
	}

	if duration > m.config.SlowQueryThreshold {
		m.slowQueryTotal.Inc(ctx, attrs...)
	}
}

// queryStartKey is the context key carrying the query start time between the
// before and after callbacks.
type dbMetricsContextKey string

const queryStartKey dbMetricsContextKey = "db_metrics_query_start"

// DBMetricsPlugin is a GORM plugin that feeds query timings into DBMetrics.
type DBMetricsPlugin struct {
	metrics *DBMetrics
	logger  *zap.Logger
}

// NewDBMetricsPlugin creates a new GORM plugin for database metrics.
func NewDBMetricsPlugin(metrics *DBMetrics, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBMetricsPlugin{
		metrics: metrics,
		logger:  logger,
	}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers before and after callbacks around every GORM
// operation. The before callback stamps the start time into the statement
// context and the after callback records the timing against the detected
// operation type.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	stamp := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, queryStartKey, time.Now())
	}

	cb := db.Callback()
	registrations := []struct {
		before func() error
		after  func() error
	}{
		{
			before: func() error {
				return cb.Create().Before("gorm:create").Register("db_metrics:before_create", stamp)
			},
			after: func() error {
				return cb.Create().After("gorm:create").Register("db_metrics:after_create", p.observe("INSERT"))
			},
		},
		{
			before: func() error {
				return cb.Query().Before("gorm:query").Register("db_metrics:before_query", stamp)
			},
			after: func() error {
				return cb.Query().After("gorm:query").Register("db_metrics:after_query", p.observe("SELECT"))
			},
		},
		{
			before: func() error {
				return cb.Update().Before("gorm:update").Register("db_metrics:before_update", stamp)
			},
			after: func() error {
				return cb.Update().After("gorm:update").Register("db_metrics:after_update", p.observe("UPDATE"))
			},
		},
		{
			before: func() error {
				return cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", stamp)
			},
			after: func() error {
				return cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", p.observe("DELETE"))
			},
		},
		{
			before: func() error {
				return cb.Row().Before("gorm:row").Register("db_metrics:before_row", stamp)
			},
			after: func() error {
				return cb.Row().After("gorm:row").Register("db_metrics:after_row", p.observeFromSQL())
			},
		},
		{
			before: func() error {
				return cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", stamp)
			},
			after: func() error {
				return cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", p.observeFromSQL())
			},
		},
	}

	for _, r := range registrations {
		if err := r.before(); err != nil {
			return err
		}
		if err := r.after(); err != nil {
			return err
		}
	}

	p.logger.Info("Database metrics callbacks registered")
	return nil
}

// observe returns an after callback recording the given operation type.
func (p *DBMetricsPlugin) observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		p.record(db, operation)
	}
}

// observeFromSQL returns an after callback for row and raw statements, where
// the operation type has to be detected from the SQL text.
func (p *DBMetricsPlugin) observeFromSQL() func(*gorm.DB) {
	return func(db *gorm.DB) {
		p.record(db, sqlOperation(db.Statement.SQL.String()))
	}
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}

	var duration time.Duration
	if start, ok := ctx.Value(queryStartKey).(time.Time); ok {
		duration = time.Since(start)
	}

	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, duration, db.Error)
}

// sqlOperation detects the SQL operation type from the query text.
func sqlOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

// RegisterDBMetrics creates database metrics, installs the GORM plugin, and
// starts pool stats collection. It returns the DBMetrics instance for
// lifecycle management (call Stop on shutdown), or nil when metrics are
// disabled.
func RegisterDBMetrics(ctx context.Context, db *gorm.DB, meterProvider *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled {
		logger.Debug("Database metrics disabled")
		return nil, nil
	}
	if meterProvider == nil || !meterProvider.IsEnabled() {
		logger.Debug("No meter provider, database metrics skipped")
		return nil, nil
	}

	metrics, err := NewDBMetrics(meterProvider.Meter("salonsuite/database"), cfg, logger)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	metrics.SetSQLDB(sqlDB)

	if err := db.Use(NewDBMetricsPlugin(metrics, logger)); err != nil {
		return nil, err
	}

	metrics.StartPoolStatsCollection(ctx)

	logger.Info("Database metrics active",
		zap.Duration("slow_query_threshold", metrics.config.SlowQueryThreshold),
		zap.Duration("pool_stats_interval", metrics.config.PoolStatsInterval),
	)

	return metrics, nil
}
