package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/realtime-observable-go/realtime/oteladapters"
	"github.com/AntonStoeckl/realtime-observable-go/testutil/observability/config"
)

func newInMemoryTracing() (*tracetest.InMemoryExporter, *oteladapters.TracingCollector) {
	providers := config.NewTestObservabilityConfig()

	return providers.SpanExporter, oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(providers.InstrumentationName()))
}

func Test_TracingCollector_StartAndFinishSpan(t *testing.T) {
	exporter, collector := newInMemoryTracing()

	ctx, spanCtx := collector.StartSpan(context.Background(), "realtime.resolve", map[string]string{
		"path":       "/books",
		"event_kind": "value",
	})
	require.NotNil(t, spanCtx)
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid(), "returned context should carry the span")

	spanCtx.AddAttribute("error_type", "none")
	collector.FinishSpan(spanCtx, "success", map[string]string{"listener": "registered"})

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	span := spans[0]
	assert.Equal(t, "realtime.resolve", span.Name)
	assertSpanHasAttribute(t, span, "path", "/books")
	assertSpanHasAttribute(t, span, "event_kind", "value")
	assertSpanHasAttribute(t, span, "error_type", "none")
	assertSpanHasAttribute(t, span, "listener", "registered")
	assert.Equal(t, codes.Ok, span.Status.Code)
}

func Test_TracingCollector_StatusMapping(t *testing.T) {
	testCases := []struct {
		status       string
		expectedCode codes.Code
		statusAttr   bool
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "ok", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "failed", expectedCode: codes.Error},
		{status: "timeout", expectedCode: codes.Error},
		{status: "canceled", expectedCode: codes.Unset, statusAttr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			exporter, collector := newInMemoryTracing()

			_, spanCtx := collector.StartSpan(context.Background(), "realtime.resolve", nil)
			collector.FinishSpan(spanCtx, tc.status, nil)

			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)

			if tc.statusAttr {
				assertSpanHasAttribute(t, spans[0], "status", tc.status)
			}
		})
	}
}

func Test_TracingCollector_NestsUnderParentSpan(t *testing.T) {
	providers := config.NewTestObservabilityConfig()
	exporter := providers.SpanExporter
	tracer := providers.TracerProvider.Tracer(providers.InstrumentationName())
	collector := oteladapters.NewTracingCollector(tracer)

	parentCtx, parent := tracer.Start(context.Background(), "request")
	_, spanCtx := collector.StartSpan(parentCtx, "realtime.resolve", nil)
	collector.FinishSpan(spanCtx, "success", nil)
	parent.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, spans[1].SpanContext.TraceID(), spans[0].SpanContext.TraceID())
}

func Test_TracingCollector_IgnoresForeignSpanContexts(t *testing.T) {
	exporter, collector := newInMemoryTracing()

	assert.NotPanics(t, func() {
		collector.FinishSpan(nil, "success", nil)
	})
	assert.Empty(t, exporter.GetSpans())
}

func assertSpanHasAttribute(t *testing.T, span tracetest.SpanStub, key, expectedValue string) {
	t.Helper()

	for _, attr := range span.Attributes {
		if attr.Key == attribute.Key(key) && attr.Value.AsString() == expectedValue {
			return
		}
	}

	assert.Failf(t, "attribute missing", "span %s should have attribute %s=%s", span.Name, key, expectedValue)
}
