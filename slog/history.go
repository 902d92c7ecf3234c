package slog

import (
	"context"
	"log/slog"

	"github.com/fwojciec/fetchq"
)

// Ensure LoggingHistoryStore implements fetchq.HistoryStore.
var _ fetchq.HistoryStore = (*LoggingHistoryStore)(nil)

// LoggingHistoryStore wraps a HistoryStore and logs lookups and writes.
// Store failures are logged at warn level since callers treat them as
// non-fatal.
type LoggingHistoryStore struct {
	next   fetchq.HistoryStore
	logger *slog.Logger
}

// NewLoggingHistoryStore creates a new LoggingHistoryStore.
func NewLoggingHistoryStore(next fetchq.HistoryStore, logger *slog.Logger) *LoggingHistoryStore {
	return &LoggingHistoryStore{next: next, logger: logger}
}

// IsCompleted delegates to the wrapped store.
func (s *LoggingHistoryStore) IsCompleted(ctx context.Context, identity string) (bool, error) {
	done, err := s.next.IsCompleted(ctx, identity)
	if err != nil {
		s.logger.Warn("history lookup", "identity", identity, "err", err)
		return done, err
	}
	s.logger.Debug("history lookup", "identity", identity, "completed", done)
	return done, nil
}

// MarkCompleted delegates to the wrapped store.
func (s *LoggingHistoryStore) MarkCompleted(ctx context.Context, task fetchq.DownloadTask) error {
	err := s.next.MarkCompleted(ctx, task)
	if err != nil {
		s.logger.Warn("history update", "url", task.URL, "err", err)
		return err
	}
	s.logger.Debug("history update", "url", task.URL)
	return nil
}
