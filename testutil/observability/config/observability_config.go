package config

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const instrumentationName = "realtime-test"

// TestObservabilityProviders holds in-memory OpenTelemetry providers for tests.
type TestObservabilityProviders struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	MetricReader   *metric.ManualReader
	SpanExporter   *tracetest.InMemoryExporter
}

// NewTestObservabilityConfig creates providers that export spans synchronously into memory
// and expose metrics through a manual reader.
func NewTestObservabilityConfig() *TestObservabilityProviders {
	reader := metric.NewManualReader()
	exporter := tracetest.NewInMemoryExporter()

	return &TestObservabilityProviders{
		TracerProvider: trace.NewTracerProvider(trace.WithSyncer(exporter)),
		MeterProvider:  metric.NewMeterProvider(metric.WithReader(reader)),
		MetricReader:   reader,
		SpanExporter:   exporter,
	}
}

// Collect reads all metrics recorded so far.
func (p *TestObservabilityProviders) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var resourceMetrics metricdata.ResourceMetrics
	err := p.MetricReader.Collect(ctx, &resourceMetrics)

	return resourceMetrics, err
}

// InstrumentationName is the tracer and meter name used by the tests.
func (p *TestObservabilityProviders) InstrumentationName() string {
	return instrumentationName
}

// Shutdown shuts down both providers.
func (p *TestObservabilityProviders) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return errors.Join(p.TracerProvider.Shutdown(ctx), p.MeterProvider.Shutdown(ctx))
}
