package slog_test

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fwojciec/fetchq"
	fqslog "github.com/fwojciec/fetchq/slog"
	"github.com/stretchr/testify/assert"
)

func TestEventLogger(t *testing.T) {
	t.Parallel()

	t.Run("failures log at warn with reason", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		handler := fqslog.EventLogger(slog.New(slog.NewTextHandler(&buf, nil)))

		handler(fetchq.Event{
			Type:    fetchq.EventFailed,
			Kind:    fetchq.KindDownload,
			URL:     "https://example.com/a.jpg",
			Domain:  "example.com",
			Attempt: 3,
			Reason:  "max attempts exceeded",
		})

		output := buf.String()
		assert.Contains(t, output, "level=WARN")
		assert.Contains(t, output, "msg=failed")
		assert.Contains(t, output, "kind=download")
		assert.Contains(t, output, "attempt=3")
		assert.Contains(t, output, "reason=\"max attempts exceeded\"")
	})

	t.Run("routine events stay below info", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		handler := fqslog.EventLogger(slog.New(slog.NewTextHandler(&buf, nil)))

		handler(fetchq.Event{Type: fetchq.EventStarted, Kind: fetchq.KindScrape, URL: "https://example.com/"})

		assert.Empty(t, buf.String())
	})
}
