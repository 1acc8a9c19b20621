package worker

import (
	"fmt"
	"time"

	"github.com/screa/powminer/pkg/types"
)

// DefaultReportInterval is the minimum time between two status reports
const DefaultReportInterval = 300 * time.Millisecond

// Report is a throughput summary over one report window
type Report struct {
	WorkerID        int
	Arch            types.Arch
	WorkUnits       uint64
	Elapsed         time.Duration
	Rate            float64
	CandidatesFound uint64
}

// String formats the report as shown on the status display
func (r Report) String() string {
	return fmt.Sprintf("hash rate: %10.3f / seals found: %10d", r.Rate, r.CandidatesFound)
}

// ReportWindow accumulates work units since its start time
type ReportWindow struct {
	WorkUnits uint64
	Start     time.Time
}

// Reset discards the accumulated work and restarts the window at now
func (w *ReportWindow) Reset(now time.Time) {
	w.WorkUnits = 0
	w.Start = now
}

// Reporter turns a ReportWindow into status reports at a bounded
// cadence. It is owned by a single worker.
type Reporter struct {
	workerID int
	arch     types.Arch
	interval time.Duration
	window   ReportWindow
	sink     StatusSink
	hook     func(Report)
}

// NewReporter creates a reporter whose window starts at now
func NewReporter(workerID int, arch types.Arch, interval time.Duration, sink StatusSink, now time.Time) *Reporter {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	r := &Reporter{
		workerID: workerID,
		arch:     arch,
		interval: interval,
		sink:     sink,
	}
	r.window.Reset(now)
	return r
}

// Add accounts work units to the current window
func (r *Reporter) Add(units uint32) {
	r.window.WorkUnits += uint64(units)
}

// Reset discards the current window
func (r *Reporter) Reset(now time.Time) {
	r.window.Reset(now)
}

// Window returns a copy of the current window
func (r *Reporter) Window() ReportWindow {
	return r.window
}

// MaybeReport emits a report if more than the interval has passed since
// the window started, then resets the window.
func (r *Reporter) MaybeReport(now time.Time, candidatesFound uint64) (Report, bool) {
	elapsed := now.Sub(r.window.Start)
	if elapsed <= r.interval {
		return Report{}, false
	}

	report := Report{
		WorkerID:        r.workerID,
		Arch:            r.arch,
		WorkUnits:       r.window.WorkUnits,
		Elapsed:         elapsed,
		Rate:            float64(r.window.WorkUnits) / elapsed.Seconds(),
		CandidatesFound: candidatesFound,
	}

	if r.sink != nil {
		r.sink.SetMessage(report.String())
		r.sink.Inc(1)
	}
	if r.hook != nil {
		r.hook(report)
	}

	r.window.Reset(now)
	return report, true
}
