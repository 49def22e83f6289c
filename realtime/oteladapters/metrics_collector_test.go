package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/realtime-observable-go/realtime/oteladapters"
	"github.com/AntonStoeckl/realtime-observable-go/testutil/observability/config"
)

func newManualMetrics() (*config.TestObservabilityProviders, *oteladapters.MetricsCollector) {
	providers := config.NewTestObservabilityConfig()

	return providers, oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(providers.InstrumentationName()))
}

func collect(t *testing.T, providers *config.TestObservabilityProviders) metricdata.ResourceMetrics {
	t.Helper()

	resourceMetrics, err := providers.Collect(context.Background())
	require.NoError(t, err)

	return resourceMetrics
}

func Test_MetricsCollector_RecordDuration(t *testing.T) {
	providers, collector := newManualMetrics()

	collector.RecordDuration(
		"realtime_resolve_duration_seconds",
		150*time.Millisecond,
		map[string]string{"event_kind": "value", "status": "success"},
	)

	histogram := findHistogramMetric(t, collect(t, providers), "realtime_resolve_duration_seconds")
	require.Len(t, histogram.DataPoints, 1)

	dataPoint := histogram.DataPoints[0]
	assert.Equal(t, uint64(1), dataPoint.Count)
	assert.InDelta(t, 0.15, dataPoint.Sum, 0.001)

	expectedAttrs := attribute.NewSet(
		attribute.String("event_kind", "value"),
		attribute.String("status", "success"),
	)
	assert.True(t, dataPoint.Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter(t *testing.T) {
	providers, collector := newManualMetrics()
	labels := map[string]string{"event_kind": "child_added"}

	collector.IncrementCounter("realtime_notifications_total", labels)
	collector.IncrementCounterContext(context.Background(), "realtime_notifications_total", labels)
	collector.IncrementCounter("realtime_notifications_total", labels)

	counter := findCounterMetric(t, collect(t, providers), "realtime_notifications_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(3), counter.DataPoints[0].Value)
	assert.True(t, counter.IsMonotonic)
}

func Test_MetricsCollector_RecordValue(t *testing.T) {
	providers, collector := newManualMetrics()
	labels := map[string]string{"event_kind": "value"}

	collector.RecordValue("realtime_active_subscriptions", 3, labels)
	collector.RecordValueContext(context.Background(), "realtime_active_subscriptions", 2, labels)

	gauge := findGaugeMetric(t, collect(t, providers), "realtime_active_subscriptions")
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 2.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_DistinguishesLabelSets(t *testing.T) {
	providers, collector := newManualMetrics()

	collector.IncrementCounter("realtime_subscriptions_total", map[string]string{"status": "opened"})
	collector.IncrementCounter("realtime_subscriptions_total", map[string]string{"status": "opened"})
	collector.IncrementCounter("realtime_subscriptions_total", map[string]string{"status": "closed"})

	counter := findCounterMetric(t, collect(t, providers), "realtime_subscriptions_total")
	require.Len(t, counter.DataPoints, 2)

	values := map[string]int64{}
	for _, dataPoint := range counter.DataPoints {
		status, _ := dataPoint.Attributes.Value("status")
		values[status.AsString()] = dataPoint.Value
	}

	assert.Equal(t, map[string]int64{"opened": 2, "closed": 1}, values)
}

func Test_MetricsCollector_IsSafeForConcurrentUse(t *testing.T) {
	providers, collector := newManualMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("realtime_notifications_total", nil)
			collector.RecordDuration("realtime_resolve_duration_seconds", time.Millisecond, nil)
			collector.RecordValue("realtime_active_subscriptions", 1, nil)
		}()
	}
	wg.Wait()

	counter := findCounterMetric(t, collect(t, providers), "realtime_notifications_total")
	require.Len(t, counter.DataPoints, 1)
	assert.Equal(t, int64(20), counter.DataPoints[0].Value)
}

func findHistogramMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Histogram[float64] {
	t.Helper()

	data := findMetricData(t, resourceMetrics, name)
	histogram, ok := data.(metricdata.Histogram[float64])
	require.True(t, ok, "metric %s is not a float64 histogram", name)

	return histogram
}

func findCounterMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()

	data := findMetricData(t, resourceMetrics, name)
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)

	return sum
}

func findGaugeMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Gauge[float64] {
	t.Helper()

	data := findMetricData(t, resourceMetrics, name)
	gauge, ok := data.(metricdata.Gauge[float64])
	require.True(t, ok, "metric %s is not a float64 gauge", name)

	return gauge
}

func findMetricData(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Aggregation {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m.Data
			}
		}
	}

	require.FailNow(t, "metric not found", name)

	return nil
}
