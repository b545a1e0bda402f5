package progress

import (
	"fmt"
	"sync"
)

// Stats is a snapshot of how a commit regression search is progressing.
type Stats struct {
	Total   int
	Pending int
	Running int
	Passed  int
	Failed  int
	Skipped int
}

// IsComplete reports whether every job has finished.
func (s Stats) IsComplete() bool {
	return s.Passed+s.Failed+s.Skipped >= s.Total
}

// Render returns a one-line summary, e.g. "3/10 tested (2 running, 5 pending)".
func (s Stats) Render() string {
	tested := s.Passed + s.Failed + s.Skipped
	return fmt.Sprintf("%d/%d tested (%d running, %d pending)", tested, s.Total, s.Running, s.Pending)
}

// RenderDetailed returns a summary broken down by outcome.
func (s Stats) RenderDetailed() string {
	tested := s.Passed + s.Failed + s.Skipped
	return fmt.Sprintf("%d/%d tested (%d pass, %d fail, %d skip, %d running, %d pending)",
		tested, s.Total, s.Passed, s.Failed, s.Skipped, s.Running, s.Pending)
}

// Callback is invoked with a Stats snapshot whenever it changes.
type Callback func(Stats)

// Tracker accumulates job-level events for one search run: how many
// commits are still queued, currently dispatched to a worker, or have
// reported a final TestResult.
type Tracker struct {
	mu       sync.RWMutex
	total    int
	running  int
	passed   int
	failed   int
	skipped  int
	callback Callback
}

// NewTracker creates a Tracker for a search expected to test total commits.
// total may grow: SetTotal adjusts it as the commit graph narrows.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// OnChange registers a callback invoked after every state change. Only
// one callback may be registered; later calls replace the previous one.
func (t *Tracker) OnChange(cb Callback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.callback = cb
}

// SetTotal updates the expected total commit count.
func (t *Tracker) SetTotal(total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.total = total
	t.notify()
}

// MarkRunning records a job dispatched to a worker.
func (t *Tracker) MarkRunning() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running++
	t.notify()
}

// MarkPassed records a job that reported Pass.
func (t *Tracker) MarkPassed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decrementRunning()
	t.passed++
	t.notify()
}

// MarkFailed records a job that reported Fail.
func (t *Tracker) MarkFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decrementRunning()
	t.failed++
	t.notify()
}

// MarkSkipped records a job that reported Skip.
func (t *Tracker) MarkSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decrementRunning()
	t.skipped++
	t.notify()
}

func (t *Tracker) decrementRunning() {
	if t.running > 0 {
		t.running--
	}
}

// Stats returns the current snapshot.
func (t *Tracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.statsLocked()
}

func (t *Tracker) statsLocked() Stats {
	tested := t.passed + t.failed + t.skipped
	return Stats{
		Total:   t.total,
		Pending: t.total - tested - t.running,
		Running: t.running,
		Passed:  t.passed,
		Failed:  t.failed,
		Skipped: t.skipped,
	}
}

func (t *Tracker) notify() {
	if t.callback == nil {
		return
	}
	t.callback(t.statsLocked())
}
