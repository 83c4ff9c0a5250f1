// Package middleware provides HTTP middleware for the stock API.
package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/salonsuite/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Size histograms share byte-oriented boundaries instead of the latency
// buckets.
var (
	requestSizeBuckets  = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000}
	responseSizeBuckets = []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000, 5000000}
)

// HTTPMetricsConfig holds configuration for the HTTP metrics middleware.
type HTTPMetricsConfig struct {
	// MeterProvider supplies the meter the instruments are created on.
	MeterProvider *telemetry.MeterProvider
	// ServiceName identifies this service in exported metrics.
	ServiceName string
	// Enabled controls whether metrics collection is active.
	Enabled bool
}

// DefaultHTTPMetricsConfig returns default HTTP metrics configuration.
func DefaultHTTPMetricsConfig() HTTPMetricsConfig {
	return HTTPMetricsConfig{
		ServiceName: "salonsuite-backend",
		Enabled:     true,
	}
}

// httpInstruments bundles the per-request instruments.
type httpInstruments struct {
	requestTotal    *telemetry.Counter
	requestDuration *telemetry.Histogram
	requestSize     *telemetry.Histogram
	responseSize    *telemetry.Histogram
	activeRequests  metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		ins httpInstruments
		err error
	)

	if ins.requestTotal, err = telemetry.NewCounter(meter,
		"http_server_request_total", "Total number of HTTP requests", "{request}"); err != nil {
		return nil, err
	}
	if ins.requestDuration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "HTTP request latency distribution in seconds",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if ins.requestSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_size_bytes",
		Description: "HTTP request body size distribution in bytes",
		Unit:        "By",
		Boundaries:  requestSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if ins.responseSize, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "HTTP response body size distribution in bytes",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if ins.activeRequests, err = meter.Int64UpDownCounter(
		"http_server_active_requests",
		metric.WithDescription("Number of currently active HTTP requests"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	return &ins, nil
}

// HTTPMetrics returns a gin middleware recording request count, latency,
// request and response sizes, and in-flight requests. Counts carry method,
// route, status code, and tenant labels; histograms only method and route
// to keep cardinality down.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passthrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter builds the middleware on a caller-supplied meter.
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passthrough
	}

	ins, err := newHTTPInstruments(meter)
	if err != nil {
		// Instrument creation only fails on invalid names; serve without
		// metrics rather than refusing to serve at all.
		return passthrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		requestSize := c.Request.ContentLength

		ins.activeRequests.Add(ctx, 1)
		c.Next()
		ins.activeRequests.Add(ctx, -1)

		ins.observe(ctx, c, time.Since(start), requestSize)
	}
}

func passthrough(c *gin.Context) {
	c.Next()
}

// routePattern reports the matched route ("/stock/items/:id") rather than
// the concrete path, so metric cardinality stays bounded.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func (ins *httpInstruments) observe(ctx context.Context, c *gin.Context, duration time.Duration, requestSize int64) {
	baseAttrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(routePattern(c)),
	}

	countAttrs := append(baseAttrs[:len(baseAttrs):len(baseAttrs)],
		telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
	if tenantID := GetTenantID(c); tenantID != "" {
		countAttrs = append(countAttrs, telemetry.AttrTenantID.String(tenantID))
	}
	ins.requestTotal.Inc(ctx, countAttrs...)

	ins.requestDuration.RecordDuration(ctx, duration, baseAttrs...)
	if requestSize > 0 {
		ins.requestSize.Record(ctx, float64(requestSize), baseAttrs...)
	}
	if size := c.Writer.Size(); size > 0 {
		ins.responseSize.Record(ctx, float64(size), baseAttrs...)
	}
}
