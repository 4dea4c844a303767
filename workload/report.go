package workload

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
)

var reportHeader = []string{
	"action", "time(total)", "ops(total)", "ops", "ops/second",
	"p50(ms)", "p90(ms)", "p95(ms)", "p99(ms)", "max(ms)",
}

// Report is one reporting window of a Coordinator.
// LiveWorkers counts running workers; DeadWorkers those that gave up reconnecting.
// Workers that stopped on request are neither.
type Report struct {
	Stats          []ActionStats
	LiveWorkers    int
	DeadWorkers    int
	TotalWorkers   int
	MinLiveWorkers int
}

// SurvivingWorkers returns the number of workers that have not died.
func (r Report) SurvivingWorkers() int {
	return r.TotalWorkers - r.DeadWorkers
}

// Degraded reports whether so many workers died that fewer than MinLiveWorkers remain.
func (r Report) Degraded() bool {
	return r.SurvivingWorkers() < r.MinLiveWorkers
}

// Render writes the report as an aligned table, followed by a warning if workers died.
func (r Report) Render(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)

	if err := writeRow(tw, reportHeader); err != nil {
		return err
	}

	for _, s := range r.Stats {
		row := []string{
			s.Action,
			fmt.Sprintf("%.1f", s.Elapsed.Seconds()),
			humanize.Comma(int64(s.CumulativeCount)), //nolint:gosec // counts stay far below MaxInt64
			humanize.Comma(int64(s.WindowCount)),
			humanize.CommafWithDigits(s.Throughput, 1),
			fmt.Sprintf("%.2f", s.P50),
			fmt.Sprintf("%.2f", s.P90),
			fmt.Sprintf("%.2f", s.P95),
			fmt.Sprintf("%.2f", s.P99),
			fmt.Sprintf("%.2f", s.Max),
		}
		if err := writeRow(tw, row); err != nil {
			return err
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Degraded() {
		_, err := fmt.Fprintf(out, "WARNING: %d of %d workers died, only %d left (minimum %d)\n",
			r.DeadWorkers, r.TotalWorkers, r.SurvivingWorkers(), r.MinLiveWorkers)

		return err
	}

	return nil
}

func writeRow(out io.Writer, cells []string) error {
	for _, cell := range cells {
		if _, err := fmt.Fprint(out, cell, "\t"); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(out)

	return err
}
