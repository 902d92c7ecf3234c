// Package http provides HTTP implementations of fetchq.PageFetcher and
// fetchq.Transferer, and a feed link extractor.
package http

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/fwojciec/fetchq"
)

// Default client timeouts.
const (
	DefaultConnectTimeout = 15 * time.Second
	DefaultReadTimeout    = 300 * time.Second
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// ClientConfig configures the shared HTTP client.
type ClientConfig struct {
	// ConnectTimeout bounds dialing a connection.
	ConnectTimeout time.Duration
	// ReadTimeout bounds waiting for response headers.
	ReadTimeout time.Duration
	// Proxy is an optional proxy URL.
	Proxy string
	// AllowInsecure disables TLS certificate verification.
	AllowInsecure bool
	// UserAgent overrides DefaultUserAgent.
	UserAgent string
}

// NewClient builds an *http.Client from cfg. There is no overall client
// timeout because large transfers may legitimately take a long time;
// callers bound requests with a context instead.
func NewClient(cfg ClientConfig) (*http.Client, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
		ResponseHeaderTimeout: readTimeout,
		TLSHandshakeTimeout:   connectTimeout,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
	}
	if cfg.Proxy != "" {
		u, err := url.Parse(cfg.Proxy)
		if err != nil || u.Host == "" {
			return nil, fetchq.Errorf(fetchq.EINVALID, "invalid proxy URL %q", cfg.Proxy)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	if cfg.AllowInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: userAgent},
	}, nil
}

// userAgentTransport sets the User-Agent header on requests that lack one.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

// classify converts a transport error into the fetchq failure taxonomy.
func classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) && netErr.Timeout() {
		return fetchq.Transient("timeout", err)
	}
	return fetchq.Transient("connection error", err)
}
