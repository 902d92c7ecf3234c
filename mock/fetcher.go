package mock

import (
	"context"

	"github.com/fwojciec/fetchq"
)

var _ fetchq.PageFetcher = (*PageFetcher)(nil)

// PageFetcher is a mock implementation of fetchq.PageFetcher.
type PageFetcher struct {
	FetchFn func(ctx context.Context, url string) (*fetchq.Page, error)
	CloseFn func() error
}

func (f *PageFetcher) Fetch(ctx context.Context, url string) (*fetchq.Page, error) {
	return f.FetchFn(ctx, url)
}

func (f *PageFetcher) Close() error {
	return f.CloseFn()
}

var _ fetchq.LinkExtractor = (*LinkExtractor)(nil)

// LinkExtractor is a mock implementation of fetchq.LinkExtractor.
type LinkExtractor struct {
	ExtractFn func(page *fetchq.Page) ([]fetchq.Link, error)
}

func (e *LinkExtractor) Extract(page *fetchq.Page) ([]fetchq.Link, error) {
	return e.ExtractFn(page)
}
