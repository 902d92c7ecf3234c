package mock

import (
	"context"

	"github.com/fwojciec/fetchq"
)

var _ fetchq.HistoryService = (*HistoryService)(nil)

// HistoryService is a mock implementation of fetchq.HistoryService.
type HistoryService struct {
	IsCompletedFn    func(ctx context.Context, identity string) (bool, error)
	MarkCompletedFn  func(ctx context.Context, task fetchq.DownloadTask) error
	CountCompletedFn func(ctx context.Context) (int, error)
	ForgetFn         func(ctx context.Context, url string) error
	FindEntriesFn    func(ctx context.Context, filter fetchq.HistoryFilter) ([]*fetchq.HistoryEntry, error)
	ClearFn          func(ctx context.Context) error
}

func (s *HistoryService) IsCompleted(ctx context.Context, identity string) (bool, error) {
	return s.IsCompletedFn(ctx, identity)
}

func (s *HistoryService) MarkCompleted(ctx context.Context, task fetchq.DownloadTask) error {
	return s.MarkCompletedFn(ctx, task)
}

func (s *HistoryService) CountCompleted(ctx context.Context) (int, error) {
	return s.CountCompletedFn(ctx)
}

func (s *HistoryService) Forget(ctx context.Context, url string) error {
	return s.ForgetFn(ctx, url)
}

func (s *HistoryService) FindEntries(ctx context.Context, filter fetchq.HistoryFilter) ([]*fetchq.HistoryEntry, error) {
	return s.FindEntriesFn(ctx, filter)
}

func (s *HistoryService) Clear(ctx context.Context) error {
	return s.ClearFn(ctx)
}
