package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/fs"
)

// DefaultChunkSize is the read size between cancellation checks.
const DefaultChunkSize = 64 << 10

// Ensure Transferer implements fetchq.Transferer at compile time.
var _ fetchq.Transferer = (*Transferer)(nil)

// Transferer streams downloads into task destinations. Bytes are written
// to a partial file that is renamed into place once complete; a partial
// file left by an earlier attempt is resumed with a Range request.
type Transferer struct {
	client     *http.Client
	chunkSize  int
	noResume   bool
	skipExists bool
}

// TransferOption configures a Transferer.
type TransferOption func(*Transferer)

// WithChunkSize sets the read size between cancellation checks.
func WithChunkSize(n int) TransferOption {
	return func(t *Transferer) {
		if n > 0 {
			t.chunkSize = n
		}
	}
}

// WithoutResume discards partial files instead of resuming them.
func WithoutResume() TransferOption {
	return func(t *Transferer) {
		t.noResume = true
	}
}

// WithSkipExisting treats an existing destination file as already downloaded.
func WithSkipExisting() TransferOption {
	return func(t *Transferer) {
		t.skipExists = true
	}
}

// NewTransferer creates a Transferer. A nil client uses http.DefaultClient.
func NewTransferer(client *http.Client, opts ...TransferOption) *Transferer {
	if client == nil {
		client = http.DefaultClient
	}
	t := &Transferer{client: client, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Download implements fetchq.Transferer.
func (t *Transferer) Download(ctx context.Context, task fetchq.DownloadTask, p fetchq.ByteProgress) error {
	if task.Destination == "" {
		return fetchq.Permanent("invalid", fmt.Errorf("no destination for %s", task.URL))
	}
	if t.skipExists {
		if size, ok := fs.Exists(task.Destination); ok {
			p.SetExpectedSize(size)
			p.Advance(size)
			return nil
		}
	}

	part, err := fs.OpenPartFile(task.Destination)
	if err != nil {
		return fetchq.Permanent("file write error", err)
	}
	if t.noResume && part.Size() > 0 {
		if err := part.Reset(); err != nil {
			_ = part.Abort()
			return fetchq.Permanent("file write error", err)
		}
	}

	if err := t.transfer(ctx, task, part, p); err != nil {
		if ctx.Err() != nil || fetchq.IsTransient(err) {
			_ = part.Abort()
		} else {
			// Permanent failures are not retried, so nothing will resume it.
			_ = part.Discard()
		}
		return err
	}
	if err := part.Commit(); err != nil {
		return fetchq.Permanent("file write error", err)
	}
	return nil
}

func (t *Transferer) transfer(ctx context.Context, task fetchq.DownloadTask, part *fs.PartFile, p fetchq.ByteProgress) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return fetchq.Permanent("invalid", err)
	}
	if task.Origin != "" {
		req.Header.Set("Referer", task.Origin)
	}
	offset := part.Size()
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return classify(ctx, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if offset > 0 {
			// Server ignored the range; start over.
			if err := part.Reset(); err != nil {
				return fetchq.Permanent("file write error", err)
			}
			offset = 0
		}
	case http.StatusPartialContent:
		if start, ok := rangeStart(resp.Header.Get("Content-Range")); !ok || start != offset {
			return fetchq.Transient("range mismatch", fmt.Errorf("unexpected Content-Range %q", resp.Header.Get("Content-Range")))
		}
	case http.StatusRequestedRangeNotSatisfiable:
		if offset > 0 {
			// The partial file already holds the whole body.
			p.SetExpectedSize(offset)
			p.Advance(offset)
			return nil
		}
		return fetchq.StatusError(resp.StatusCode, task.URL)
	default:
		return fetchq.StatusError(resp.StatusCode, task.URL)
	}

	expected := int64(-1)
	if resp.ContentLength >= 0 {
		expected = offset + resp.ContentLength
		p.SetExpectedSize(expected)
	}
	if offset > 0 {
		p.Advance(offset)
	}

	buf := make([]byte, t.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := part.Write(buf[:n]); werr != nil {
				return fetchq.Permanent("file write error", werr)
			}
			p.Advance(int64(n))
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return classify(ctx, rerr)
		}
	}

	if expected >= 0 && part.Size() != expected {
		return fetchq.Transient("incomplete transfer", fmt.Errorf("got %d of %d bytes", part.Size(), expected))
	}
	return nil
}

// rangeStart parses the first byte position of a Content-Range header.
func rangeStart(header string) (int64, bool) {
	rest, ok := strings.CutPrefix(header, "bytes ")
	if !ok {
		return 0, false
	}
	first, _, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(first, 10, 64)
	return n, err == nil
}
