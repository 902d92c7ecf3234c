package slog

import (
	"log/slog"

	"github.com/fwojciec/fetchq"
)

// EventLogger returns an EventHandler that writes each item event to logger.
// Failures log at warn level, retries at info, everything else at debug.
func EventLogger(logger *slog.Logger) fetchq.EventHandler {
	return func(e fetchq.Event) {
		attrs := []any{
			"kind", e.Kind.String(),
			"url", e.URL,
			"domain", e.Domain.String(),
			"attempt", e.Attempt,
		}
		if e.Reason != "" {
			attrs = append(attrs, "reason", e.Reason)
		}
		if e.Error != nil {
			attrs = append(attrs, "err", e.Error)
		}

		switch e.Type {
		case fetchq.EventFailed:
			logger.Warn(e.Type.String(), attrs...)
		case fetchq.EventRetrying:
			logger.Info(e.Type.String(), attrs...)
		default:
			logger.Debug(e.Type.String(), attrs...)
		}
	}
}
