package oteladapters_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/movr-workload-go/oteladapters"
)

func newTestTracing() (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	return oteladapters.NewTracingCollector(provider.Tracer("test")), exporter
}

func spanAttribute(span tracetest.SpanStub, key string) (attribute.Value, bool) {
	for _, attr := range span.Attributes {
		if string(attr.Key) == key {
			return attr.Value, true
		}
	}

	return attribute.Value{}, false
}

func Test_TracingCollector_ShouldExportFinishedSpan_WithAllAttributes(t *testing.T) {
	// arrange
	collector, exporter := newTestTracing()

	// act
	ctx, span := collector.StartSpan(context.Background(), "start ride", map[string]string{"action": "start ride"})
	span.AddAttribute("city", "rome")
	collector.FinishSpan(span, "success", map[string]string{"rows": "2"})

	// assert
	assert.True(t, trace.SpanContextFromContext(ctx).IsValid())

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "start ride", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	for key, expected := range map[string]string{"action": "start ride", "city": "rome", "rows": "2"} {
		value, ok := spanAttribute(spans[0], key)
		require.True(t, ok, key)
		assert.Equal(t, expected, value.AsString())
	}
}

func Test_TracingCollector_ShouldMapStatuses(t *testing.T) {
	testCases := []struct {
		status       string
		expectedCode codes.Code
		expectedAttr string
	}{
		{status: "success", expectedCode: codes.Ok},
		{status: "error", expectedCode: codes.Error},
		{status: "skipped", expectedCode: codes.Unset, expectedAttr: "skipped"},
		{status: "mystery", expectedCode: codes.Unset, expectedAttr: "status"},
	}

	for _, tc := range testCases {
		t.Run(tc.status, func(t *testing.T) {
			// arrange
			collector, exporter := newTestTracing()

			// act
			_, span := collector.StartSpan(context.Background(), "op", nil)
			collector.FinishSpan(span, tc.status, nil)

			// assert
			spans := exporter.GetSpans()
			require.Len(t, spans, 1)
			assert.Equal(t, tc.expectedCode, spans[0].Status.Code)

			if tc.expectedAttr != "" {
				_, ok := spanAttribute(spans[0], tc.expectedAttr)
				assert.True(t, ok)
			}
		})
	}
}

func Test_TracingCollector_ShouldNestSpans_ThroughContext(t *testing.T) {
	// arrange
	collector, exporter := newTestTracing()

	// act
	ctx, parent := collector.StartSpan(context.Background(), "end ride", nil)
	_, child := collector.StartSpan(ctx, "movr.db.end_ride", nil)
	collector.FinishSpan(child, "success", nil)
	collector.FinishSpan(parent, "success", nil)

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func Test_TracingCollector_FinishSpan_ShouldIgnoreForeignSpanContexts(t *testing.T) {
	// arrange
	collector, exporter := newTestTracing()

	// act
	collector.FinishSpan(nil, "success", nil)

	// assert
	assert.Empty(t, exporter.GetSpans())
}
