package fetchq

import (
	"context"
	"time"
)

// HistoryEntry records a completed download.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	URL         string    `json:"url"`
	Domain      DomainKey `json:"domain"`
	CompletedAt time.Time `json:"completedAt"`
}

// HistoryStore remembers downloads completed by previous runs.
type HistoryStore interface {
	// IsCompleted reports whether the identity was recorded as completed.
	IsCompleted(ctx context.Context, identity string) (bool, error)

	// MarkCompleted records the task as completed.
	MarkCompleted(ctx context.Context, task DownloadTask) error
}

// HistoryService extends HistoryStore with maintenance operations used by
// the CLI.
type HistoryService interface {
	HistoryStore

	// CountCompleted returns the number of recorded downloads.
	CountCompleted(ctx context.Context) (int, error)

	// Forget removes the entry for a URL.
	// Returns ENOTFOUND if the URL was never recorded.
	Forget(ctx context.Context, url string) error

	// FindEntries returns entries matching the filter, newest first.
	FindEntries(ctx context.Context, filter HistoryFilter) ([]*HistoryEntry, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error
}

// HistoryFilter represents a filter for FindEntries.
type HistoryFilter struct {
	Domain *DomainKey

	Limit  int
	Offset int
}
