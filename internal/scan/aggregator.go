package scan

import (
	"time"

	"github.com/vizscan/vizscan/internal/model"
)

// RowSink receives flushed scan results. Implementations append; the
// aggregator guarantees each result is handed over exactly once and in
// record order.
type RowSink interface {
	// WriteRows appends the given results to the sink.
	WriteRows(results []model.ScanResult) error
}

// Aggregator accumulates per-report outcomes and flushes them
// incrementally. Recording order is preserved through any sequence of
// flushes: the sink's cumulative content after N partial flushes is
// identical to one end-of-run flush of the same results.
type Aggregator struct {
	sink      RowSink
	startedAt time.Time
	results   []model.ScanResult
	flushed   int
}

// NewAggregator creates an Aggregator writing to sink.
func NewAggregator(sink RowSink) *Aggregator {
	return &Aggregator{
		sink:      sink,
		startedAt: time.Now(),
	}
}

// Record appends a result. Results are immutable once recorded.
func (a *Aggregator) Record(result model.ScanResult) {
	a.results = append(a.results, result)
}

// Flush hands all not-yet-flushed results to the sink. Safe to call
// any number of times, including with nothing pending. On sink failure
// the pending results stay pending, so a later flush retries them
// without duplicating anything already accepted.
func (a *Aggregator) Flush() error {
	pending := a.results[a.flushed:]
	if len(pending) == 0 {
		return nil
	}
	if err := a.sink.WriteRows(pending); err != nil {
		return err
	}
	a.flushed = len(a.results)
	return nil
}

// Summary computes the run summary over everything recorded so far.
func (a *Aggregator) Summary() model.RunSummary {
	s := model.NewRunSummary(a.results)
	s.StartedAt = a.startedAt
	return s
}

// Results returns all recorded results in record order.
func (a *Aggregator) Results() []model.ScanResult {
	return a.results
}
