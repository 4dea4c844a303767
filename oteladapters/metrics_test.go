package oteladapters_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/movr-workload-go/oteladapters"
	"github.com/AntonStoeckl/movr-workload-go/workload"
)

func newTestCollector() (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration_ShouldRecordSeconds(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	labels := map[string]string{"action": "get vehicles"}

	// act
	collector.RecordDuration(workload.ActionDurationMetric, 150*time.Millisecond, labels)

	// assert
	m := collect(t, reader, workload.ActionDurationMetric)
	assert.Equal(t, "s", m.Unit)
	assert.Equal(t, "Latency of successful simulated actions", m.Description)

	histogram, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expectedAttrs := attribute.NewSet(attribute.String("action", "get vehicles"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expectedAttrs))
}

func Test_MetricsCollector_IncrementCounter_ShouldSumPerLabelSet(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	transient := map[string]string{"error_class": "transient"}
	fatal := map[string]string{"error_class": "fatal"}

	// act
	collector.IncrementCounter(workload.ActionErrorsMetric, transient)
	collector.IncrementCounterContext(context.Background(), workload.ActionErrorsMetric, transient)
	collector.IncrementCounter(workload.ActionErrorsMetric, fatal)

	// assert
	sum, ok := collect(t, reader, workload.ActionErrorsMetric).Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	totals := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		class, _ := dp.Attributes.Value("error_class")
		totals[class.AsString()] = dp.Value
	}

	assert.Equal(t, map[string]int64{"transient": 2, "fatal": 1}, totals)
}

func Test_MetricsCollector_RecordValue_ShouldKeepLastValue(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()

	// act
	collector.RecordValue(workload.LiveWorkersMetric, 5, nil)
	collector.RecordValueContext(context.Background(), workload.LiveWorkersMetric, 3, nil)

	// assert
	gauge, ok := collect(t, reader, workload.LiveWorkersMetric).Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 3.0, gauge.DataPoints[0].Value, 0.0001)
}

func Test_MetricsCollector_ShouldBeSafe_ForConcurrentWorkers(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()
	const workers, perWorker = 8, 250

	var wg sync.WaitGroup

	// act
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				collector.IncrementCounter(workload.RetryAttemptsMetric, nil)
				collector.RecordDuration(workload.RetryDelayMetric, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	// assert
	sum, ok := collect(t, reader, workload.RetryAttemptsMetric).Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(workers*perWorker), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_ShouldDescribeUnknownMetrics_Generically(t *testing.T) {
	// arrange
	collector, reader := newTestCollector()

	// act
	collector.IncrementCounter("movr_custom_total", nil)

	// assert
	assert.Equal(t, "MovR workload metric", collect(t, reader, "movr_custom_total").Description)
}
