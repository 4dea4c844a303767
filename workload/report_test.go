package workload_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/movr-workload-go/workload"
)

func Test_Report_Render_ShouldPrintOneRowPerAction(t *testing.T) {
	// setup
	report := workload.Report{
		Stats: []workload.ActionStats{
			{
				Action: "get vehicles", Elapsed: 12 * time.Second, CumulativeCount: 123456, WindowCount: 2500,
				Throughput: 500, P50: 1.5, P90: 2, P95: 3.25, P99: 7, Max: 12.5,
			},
			{Action: "add user", Elapsed: 12 * time.Second},
		},
		LiveWorkers:    4,
		TotalWorkers:   4,
		MinLiveWorkers: 4,
	}
	var out bytes.Buffer

	// act
	require.NoError(t, report.Render(&out))

	// assert
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		[]string{"action", "time(total)", "ops(total)", "ops", "ops/second", "p50(ms)", "p90(ms)", "p95(ms)", "p99(ms)", "max(ms)"},
		strings.Fields(lines[0]),
	)
	assert.Equal(t,
		[]string{"get", "vehicles", "12.0", "123,456", "2,500", "500", "1.50", "2.00", "3.25", "7.00", "12.50"},
		strings.Fields(lines[1]),
	)
	assert.NotContains(t, out.String(), "WARNING")
}

func Test_Report_Render_ShouldWarn_WhenWorkersDied(t *testing.T) {
	report := workload.Report{LiveWorkers: 1, DeadWorkers: 2, TotalWorkers: 4, MinLiveWorkers: 3}
	var out bytes.Buffer

	require.NoError(t, report.Render(&out))

	assert.True(t, report.Degraded())
	assert.Contains(t, out.String(), "WARNING: 2 of 4 workers died, only 2 left (minimum 3)")
}

func Test_Report_Render_ShouldNotWarn_WhenWorkersStoppedOnRequest(t *testing.T) {
	report := workload.Report{LiveWorkers: 0, DeadWorkers: 0, TotalWorkers: 4, MinLiveWorkers: 4}
	var out bytes.Buffer

	require.NoError(t, report.Render(&out))

	assert.False(t, report.Degraded())
	assert.NotContains(t, out.String(), "WARNING")
}
