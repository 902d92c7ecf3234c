package slog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fwojciec/fetchq"
)

// Ensure LoggingTransferer implements fetchq.Transferer.
var _ fetchq.Transferer = (*LoggingTransferer)(nil)

// LoggingTransferer wraps a Transferer with debug logging.
type LoggingTransferer struct {
	next   fetchq.Transferer
	logger *slog.Logger
}

// NewLoggingTransferer creates a new LoggingTransferer.
func NewLoggingTransferer(next fetchq.Transferer, logger *slog.Logger) *LoggingTransferer {
	return &LoggingTransferer{next: next, logger: logger}
}

// Download delegates to the wrapped transferer and logs the bytes moved.
func (t *LoggingTransferer) Download(ctx context.Context, task fetchq.DownloadTask, p fetchq.ByteProgress) (err error) {
	counter := &countingProgress{next: p}
	defer func(begin time.Time) {
		t.logger.Info("download",
			"url", task.URL,
			"dest", task.Destination,
			"attempt", task.Attempt+1,
			"bytes", counter.n.Load(),
			"duration", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return t.next.Download(ctx, task, counter)
}

// countingProgress forwards progress while counting bytes written.
type countingProgress struct {
	next fetchq.ByteProgress
	n    atomic.Int64
}

func (c *countingProgress) SetExpectedSize(n int64) {
	if c.next != nil {
		c.next.SetExpectedSize(n)
	}
}

func (c *countingProgress) Advance(n int64) {
	c.n.Add(n)
	if c.next != nil {
		c.next.Advance(n)
	}
}
