package observability

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/spec-kit/issue-service/internal/config"
	"github.com/spec-kit/issue-service/internal/domain"
)

const meterName = "github.com/spec-kit/issue-service"

// NewMeterProvider builds the OTel meter provider. Without an OTLP endpoint
// instruments are recorded but never exported.
func NewMeterProvider(ctx context.Context, app config.AppConfig, cfg config.TelemetryConfig, extra ...sdkmetric.Reader) (*sdkmetric.MeterProvider, error) {
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", app.Name),
		attribute.String("service.version", app.Version),
		attribute.String("deployment.environment", app.Env),
	))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		exporterOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlpmetricgrpc.WithInsecure())
		}
		exporter, err := otlpmetricgrpc.New(ctx, exporterOpts...)
		if err != nil {
			return nil, fmt.Errorf("otlp metric exporter: %w", err)
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}
	for _, reader := range extra {
		opts = append(opts, sdkmetric.WithReader(reader))
	}
	return sdkmetric.NewMeterProvider(opts...), nil
}

// Metrics holds the service instruments. A nil *Metrics records nothing.
type Metrics struct {
	requests    metric.Int64Counter
	errors      metric.Int64Counter
	latency     metric.Float64Histogram
	transitions metric.Int64Counter
	overdue     atomic.Int64
}

// NewMetrics registers instruments on provider.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.requests, err = meter.Int64Counter("http.server.requests",
		metric.WithDescription("Handled HTTP requests")); err != nil {
		return nil, err
	}
	if m.errors, err = meter.Int64Counter("http.server.errors",
		metric.WithDescription("HTTP requests that ended in an error response")); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram("http.server.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("HTTP request latency")); err != nil {
		return nil, err
	}
	if m.transitions, err = meter.Int64Counter("issues.transitions",
		metric.WithDescription("Issue status transitions")); err != nil {
		return nil, err
	}
	if _, err = meter.Int64ObservableGauge("issues.overdue",
		metric.WithDescription("Unsettled issues past their due date at the last scan"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.overdue.Load())
			return nil
		})); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordRequest counts a handled request and its latency.
func (m *Metrics) RecordRequest(ctx context.Context, route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("http.status_code", strconv.Itoa(status)),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
}

// RecordError counts an error response by code.
func (m *Metrics) RecordError(ctx context.Context, route, method, code string) {
	if m == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.String("http.method", method),
		attribute.String("error.code", code),
	))
}

// RecordTransition counts a status change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to domain.Status) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(from)),
		attribute.String("to", string(to)),
	))
}

// SetOverdue stores the latest overdue count for the gauge.
func (m *Metrics) SetOverdue(n int) {
	if m == nil {
		return
	}
	m.overdue.Store(int64(n))
}
