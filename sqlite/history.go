package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ fetchq.HistoryService = (*HistoryService)(nil)

// HistoryService implements fetchq.HistoryService using SQLite.
type HistoryService struct {
	db *DB
}

// NewHistoryService creates a new HistoryService.
func NewHistoryService(db *DB) *HistoryService {
	return &HistoryService{db: db}
}

// IsCompleted reports whether the identity was recorded as completed.
func (s *HistoryService) IsCompleted(ctx context.Context, identity string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM history WHERE identity = ?
	`, identity).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCompleted records the task as completed. Recording the same identity
// again refreshes its completion time.
func (s *HistoryService) MarkCompleted(ctx context.Context, task fetchq.DownloadTask) error {
	domain, err := task.DomainKey()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history (id, identity, url, domain, completed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			url = excluded.url,
			domain = excluded.domain,
			completed_at = excluded.completed_at
	`, uuid.New().String(), task.Identity(), task.URL, string(domain),
		time.Now().UTC().Format(time.RFC3339))

	return err
}

// CountCompleted returns the number of recorded downloads.
func (s *HistoryService) CountCompleted(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n)
	return n, err
}

// Forget removes the entry for a URL.
// Returns ENOTFOUND if the URL was never recorded.
func (s *HistoryService) Forget(ctx context.Context, url string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM history WHERE identity = ?
	`, fetchq.Identity(url))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fetchq.Errorf(fetchq.ENOTFOUND, "no history for %s", url)
	}

	return nil
}

// FindEntries returns entries matching the filter, newest first.
func (s *HistoryService) FindEntries(ctx context.Context, filter fetchq.HistoryFilter) ([]*fetchq.HistoryEntry, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT id, identity, url, domain, completed_at FROM history WHERE 1=1")

	if filter.Domain != nil {
		query.WriteString(" AND domain = ?")
		args = append(args, string(*filter.Domain))
	}

	query.WriteString(" ORDER BY completed_at DESC, rowid DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*fetchq.HistoryEntry
	for rows.Next() {
		var entry fetchq.HistoryEntry
		var domain, completedAt string

		if err := rows.Scan(&entry.ID, &entry.Identity, &entry.URL, &domain, &completedAt); err != nil {
			return nil, err
		}
		entry.Domain = fetchq.DomainKey(domain)

		entry.CompletedAt, err = parseRFC3339(completedAt, "completed_at")
		if err != nil {
			return nil, err
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Clear removes all entries.
func (s *HistoryService) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}
