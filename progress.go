package fetchq

// ProgressCounters is a point-in-time copy of a stage's outcome counts.
// Completed + PreviouslyCompleted + Skipped + Failed never exceeds Total.
type ProgressCounters struct {
	Total               int            `json:"total"`
	Completed           int            `json:"completed"`
	PreviouslyCompleted int            `json:"previouslyCompleted"`
	Skipped             int            `json:"skipped"`
	Failed              int            `json:"failed"`
	FailureReasons      map[string]int `json:"failureReasons"`
}

// Terminal returns the number of items that reached a terminal outcome.
func (c ProgressCounters) Terminal() int {
	return c.Completed + c.PreviouslyCompleted + c.Skipped + c.Failed
}

// Remaining returns the number of items still queued or in flight.
func (c ProgressCounters) Remaining() int {
	return c.Total - c.Terminal()
}

// TaskHandle correlates a running work item with its visible progress row.
// Handles are created when an item starts and retired on its terminal outcome.
type TaskHandle uint64

// TaskProgress is the visible state of one running item.
type TaskProgress struct {
	Handle   TaskHandle `json:"handle"`
	Label    string     `json:"label"`
	Advanced int64      `json:"advanced"`
	Expected int64      `json:"expected"` // 0 if unknown
}

// ProgressSnapshot is what observers read from a tracker.
type ProgressSnapshot struct {
	Counters ProgressCounters `json:"counters"`
	// Visible holds up to the configured limit of active rows, oldest first.
	Visible []TaskProgress `json:"visible"`
	// Overflow counts active rows beyond the visible limit.
	Overflow int `json:"overflow"`
}
