// Package rod fetches JavaScript-rendered pages with a headless Chrome browser.
package rod

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultFetchTimeout is the default timeout for rendering a page.
const DefaultFetchTimeout = 10 * time.Second

// Ensure Fetcher implements fetchq.PageFetcher at compile time.
var _ fetchq.PageFetcher = (*Fetcher)(nil)

// Fetcher retrieves rendered HTML from URLs using Chrome browser automation.
// Fetcher is safe for concurrent use by multiple goroutines.
type Fetcher struct {
	manager *BrowserManager
	timeout time.Duration
	browser []BrowserOption
	closed  atomic.Bool
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithFetchTimeout sets the timeout for rendering a single page.
// Defaults to DefaultFetchTimeout (10s) if not specified.
func WithFetchTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithBrowserOptions passes launch options to the underlying BrowserManager.
func WithBrowserOptions(opts ...BrowserOption) Option {
	return func(f *Fetcher) {
		f.browser = append(f.browser, opts...)
	}
}

// NewFetcher creates a new Fetcher that launches a headless Chrome browser.
// Close must be called when the Fetcher is no longer needed.
//
// Returns an error if Chrome/Chromium cannot be found or launched.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{timeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(f)
	}

	manager, err := NewBrowserManager(f.browser...)
	if err != nil {
		return nil, err
	}
	f.manager = manager

	return f, nil
}

// Fetch navigates to the URL and returns the rendered HTML.
// Document responses with an unexpected status become status errors, the
// same way a plain HTTP fetch reports them.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*fetchq.Page, error) {
	if f.closed.Load() {
		return nil, fetchq.Errorf(fetchq.EINVALID, "fetcher is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	page, release, err := f.manager.OpenPage()
	if err != nil {
		return nil, fetchq.Transient("browser error", err)
	}
	defer release()

	page = page.Context(ctx)

	var status int
	var mimeType string
	waitResponse := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		mimeType = e.Response.MIMEType
		return true
	})

	if err := page.Navigate(url); err != nil {
		return nil, classify(ctx, err)
	}
	waitResponse()

	if status != 0 && status != 200 {
		return nil, fetchq.StatusError(status, url)
	}

	if err := page.WaitLoad(); err != nil {
		return nil, classify(ctx, err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, classify(ctx, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	if mimeType == "" {
		mimeType = "text/html"
	}

	return &fetchq.Page{
		URL:         finalURL,
		ContentType: mimeType,
		Body:        []byte(html),
	}, nil
}

// Close releases browser resources. Close is safe to call multiple times.
func (f *Fetcher) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	return f.manager.Close()
}

// LauncherPID returns the process ID of the browser launcher.
func (f *Fetcher) LauncherPID() int {
	return f.manager.LauncherPID()
}

func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fetchq.Transient("timeout", err)
	}
	return fetchq.Transient("connection error", err)
}
