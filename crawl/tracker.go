package crawl

import (
	"maps"
	"sync"

	"github.com/fwojciec/fetchq"
)

// Tracker aggregates the outcome counters of one pipeline stage and the
// progress rows of its running items.
//
// Counters only grow. Every terminal outcome raises Total first if needed,
// so Completed + PreviouslyCompleted + Skipped + Failed never exceeds Total.
//
// Tracker is safe for concurrent use by multiple goroutines.
type Tracker struct {
	mu           sync.Mutex
	counters     fetchq.ProgressCounters
	visibleLimit int
	next         fetchq.TaskHandle
	rows         map[fetchq.TaskHandle]*fetchq.TaskProgress
	order        []fetchq.TaskHandle
}

// NewTracker creates a Tracker that exposes at most visibleLimit running
// rows in snapshots. A limit of zero or less exposes every row.
func NewTracker(visibleLimit int) *Tracker {
	return &Tracker{
		visibleLimit: visibleLimit,
		counters:     fetchq.ProgressCounters{FailureReasons: make(map[string]int)},
		rows:         make(map[fetchq.TaskHandle]*fetchq.TaskProgress),
	}
}

// AddTotal records n newly admitted items.
func (t *Tracker) AddTotal(n int) {
	if n <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counters.Total += n
}

// AddCompleted records an item that finished successfully.
func (t *Tracker) AddCompleted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserveLocked()
	t.counters.Completed++
}

// AddPreviouslyCompleted records an item found in history. When
// increaseTotal is set the item is also counted as newly admitted, for
// items that were never passed to AddTotal.
func (t *Tracker) AddPreviouslyCompleted(increaseTotal bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if increaseTotal {
		t.counters.Total++
	}
	t.reserveLocked()
	t.counters.PreviouslyCompleted++
}

// AddSkipped records an item excluded by policy.
func (t *Tracker) AddSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserveLocked()
	t.counters.Skipped++
}

// AddFailure records an item that failed terminally with the given reason.
func (t *Tracker) AddFailure(reason string) {
	if reason == "" {
		reason = fetchq.ReasonUnknown
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.reserveLocked()
	t.counters.Failed++
	t.counters.FailureReasons[reason]++
}

// reserveLocked makes room for one more terminal outcome.
func (t *Tracker) reserveLocked() {
	if t.counters.Terminal() >= t.counters.Total {
		t.counters.Total = t.counters.Terminal() + 1
	}
}

// StartTask creates a progress row for a running item.
// expected is the size in bytes if known, otherwise 0.
func (t *Tracker) StartTask(label string, expected int64) fetchq.TaskHandle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	h := t.next
	t.rows[h] = &fetchq.TaskProgress{Handle: h, Label: label, Expected: expected}
	t.order = append(t.order, h)
	return h
}

// AdvanceBytes adds n bytes to the row. Unknown handles are ignored.
func (t *Tracker) AdvanceBytes(h fetchq.TaskHandle, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row, ok := t.rows[h]; ok {
		row.Advanced += n
	}
}

// SetExpectedSize sets the row's expected size once it becomes known.
func (t *Tracker) SetExpectedSize(h fetchq.TaskHandle, n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if row, ok := t.rows[h]; ok {
		row.Expected = n
	}
}

// FinishTask retires the row. Rows hidden by the visible limit move into
// view in start order.
func (t *Tracker) FinishTask(h fetchq.TaskHandle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[h]; !ok {
		return
	}
	delete(t.rows, h)
	for i, v := range t.order {
		if v == h {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Counters returns a copy of the current counters.
func (t *Tracker) Counters() fetchq.ProgressCounters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.countersLocked()
}

func (t *Tracker) countersLocked() fetchq.ProgressCounters {
	c := t.counters
	c.FailureReasons = maps.Clone(t.counters.FailureReasons)
	return c
}

// Snapshot returns a consistent copy of counters and visible rows.
func (t *Tracker) Snapshot() fetchq.ProgressSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	visible := len(t.order)
	if t.visibleLimit > 0 && visible > t.visibleLimit {
		visible = t.visibleLimit
	}
	rows := make([]fetchq.TaskProgress, 0, visible)
	for _, h := range t.order[:visible] {
		rows = append(rows, *t.rows[h])
	}
	return fetchq.ProgressSnapshot{
		Counters: t.countersLocked(),
		Visible:  rows,
		Overflow: len(t.order) - visible,
	}
}

// taskProgress adapts a tracker row to fetchq.ByteProgress.
type taskProgress struct {
	tracker *Tracker
	handle  fetchq.TaskHandle
}

var _ fetchq.ByteProgress = taskProgress{}

func (p taskProgress) SetExpectedSize(n int64) { p.tracker.SetExpectedSize(p.handle, n) }
func (p taskProgress) Advance(n int64)         { p.tracker.AdvanceBytes(p.handle, n) }
