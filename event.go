package fetchq

import "time"

// EventType identifies what happened to a work item.
type EventType int

const (
	EventStarted EventType = iota
	EventCompleted
	EventPreviouslyCompleted
	EventSkipped
	EventRetrying
	EventFailed
)

// String returns a lowercase name for the event type.
func (t EventType) String() string {
	switch t {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventPreviouslyCompleted:
		return "previously_completed"
	case EventSkipped:
		return "skipped"
	case EventRetrying:
		return "retrying"
	case EventFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event reports an outcome or transition of a single work item.
type Event struct {
	Type    EventType
	Kind    WorkKind
	URL     string
	Domain  DomainKey
	Attempt int
	Reason  string // failure or skip reason
	Error   error
	Time    time.Time
}

// EventHandler receives item events. Handlers are called from worker
// goroutines and must be safe for concurrent use and must not block.
type EventHandler func(Event)
