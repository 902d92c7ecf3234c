package slog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fwojciec/fetchq"
)

// Ensure LoggingScraper implements fetchq.Scraper.
var _ fetchq.Scraper = (*LoggingScraper)(nil)

// LoggingScraper wraps a Scraper with debug logging.
type LoggingScraper struct {
	next   fetchq.Scraper
	logger *slog.Logger
}

// NewLoggingScraper creates a new LoggingScraper.
func NewLoggingScraper(next fetchq.Scraper, logger *slog.Logger) *LoggingScraper {
	return &LoggingScraper{next: next, logger: logger}
}

// Scrape delegates to the wrapped scraper and logs how much work it found.
func (s *LoggingScraper) Scrape(ctx context.Context, task fetchq.ScrapeTask) (items []fetchq.WorkItem, err error) {
	defer func(begin time.Time) {
		var pages, downloads int
		for _, item := range items {
			switch item.Kind() {
			case fetchq.KindScrape:
				pages++
			case fetchq.KindDownload:
				downloads++
			}
		}
		s.logger.Info("scrape",
			"url", task.URL,
			"depth", task.Depth,
			"attempt", task.Attempt+1,
			"pages", pages,
			"downloads", downloads,
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Scrape(ctx, task)
}
