package mock

import (
	"context"

	"github.com/fwojciec/fetchq"
)

var _ fetchq.Scraper = (*Scraper)(nil)

// Scraper is a mock implementation of fetchq.Scraper.
type Scraper struct {
	ScrapeFn func(ctx context.Context, task fetchq.ScrapeTask) ([]fetchq.WorkItem, error)
}

func (s *Scraper) Scrape(ctx context.Context, task fetchq.ScrapeTask) ([]fetchq.WorkItem, error) {
	return s.ScrapeFn(ctx, task)
}

var _ fetchq.Transferer = (*Transferer)(nil)

// Transferer is a mock implementation of fetchq.Transferer.
type Transferer struct {
	DownloadFn func(ctx context.Context, task fetchq.DownloadTask, p fetchq.ByteProgress) error
}

func (t *Transferer) Download(ctx context.Context, task fetchq.DownloadTask, p fetchq.ByteProgress) error {
	return t.DownloadFn(ctx, task, p)
}

var _ fetchq.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter is a mock implementation of fetchq.DomainLimiter.
type DomainLimiter struct {
	WaitFn func(ctx context.Context, domain fetchq.DomainKey) error
}

func (l *DomainLimiter) Wait(ctx context.Context, domain fetchq.DomainKey) error {
	return l.WaitFn(ctx, domain)
}
