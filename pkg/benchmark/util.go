package benchmark

import (
	"fmt"
	"io"
	stdsort "sort"
	"time"

	"github.com/nathantp/colsort/pkg/sort"
	"gonum.org/v1/gonum/stat"
)

// Accumulates wall-clock samples for one measurement. Start/Stop may pause
// and resume within a sample; Record closes the sample and zeroes the
// running total for the next one.
type PerfTimer struct {
	Vals  []float64 // nanoseconds per sample, float64 for gonum/stat
	cur   time.Duration
	start time.Time
}

func (self *PerfTimer) Start() {
	self.start = time.Now()
}

// Add the time since Start to the running sample
func (self *PerfTimer) Stop() {
	self.cur += time.Since(self.start)
}

func (self *PerfTimer) Record() {
	self.Stop()
	self.Vals = append(self.Vals, (float64)(self.cur))
	self.cur = 0
}

// Append the samples of other (left unchanged)
func (self *PerfTimer) Update(other *PerfTimer) {
	self.Vals = append(self.Vals, other.Vals...)
}

// Named timers for one series of runs, e.g. "TTotal" or "TDispatching"
type SortStats map[string]*PerfTimer

// Get the named timer, creating it on first use
func (self SortStats) Timer(name string) *PerfTimer {
	t, ok := self[name]
	if !ok {
		t = &PerfTimer{}
		self[name] = t
	}
	return t
}

// Coordinator observer that times each phase of a run into stats, one timer
// per state ("TDispatching", "TAwaitingResults", ...). The final state of a
// run (Done or Aborted) only stops the previous phase.
func PhaseObserver(stats SortStats) func(sort.State) {
	var cur *PerfTimer
	return func(s sort.State) {
		if cur != nil {
			cur.Record()
			cur = nil
		}
		if s == sort.Done || s == sort.Aborted {
			return
		}
		cur = stats.Timer("T" + s.String())
		cur.Start()
	}
}

func ReportStats(stats SortStats, writer io.Writer) {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	stdsort.Strings(names)

	for _, name := range names {
		mean, stdev := stat.MeanStdDev(stats[name].Vals, nil)
		fmt.Fprintf(writer, "%v (mean):\t%vs\n", name, mean/1e9)
		fmt.Fprintf(writer, "%v (std):\t%vs\n", name, stdev/1e9)
	}
}
