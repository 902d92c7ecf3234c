// Package slog provides logging decorators for fetchq services.
package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/fetchq"
)

// Ensure LoggingFetcher implements fetchq.PageFetcher.
var _ fetchq.PageFetcher = (*LoggingFetcher)(nil)

// LoggingFetcher wraps a PageFetcher with debug logging.
type LoggingFetcher struct {
	next   fetchq.PageFetcher
	logger *slog.Logger
}

// NewLoggingFetcher creates a new LoggingFetcher.
func NewLoggingFetcher(next fetchq.PageFetcher, logger *slog.Logger) *LoggingFetcher {
	return &LoggingFetcher{next: next, logger: logger}
}

// Fetch logs the URL being fetched and delegates to the wrapped fetcher.
func (f *LoggingFetcher) Fetch(ctx context.Context, url string) (page *fetchq.Page, err error) {
	defer func(begin time.Time) {
		var size int
		if page != nil {
			size = len(page.Body)
		}
		f.logger.Info("fetch",
			"url", url,
			"bytes", size,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return f.next.Fetch(ctx, url)
}

// Close delegates to the wrapped fetcher.
func (f *LoggingFetcher) Close() error {
	return f.next.Close()
}
