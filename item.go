package fetchq

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// WorkKind distinguishes the two stages of the pipeline.
type WorkKind int

const (
	KindScrape WorkKind = iota
	KindDownload
)

// String returns a short name for the kind.
func (k WorkKind) String() string {
	switch k {
	case KindScrape:
		return "scrape"
	case KindDownload:
		return "download"
	default:
		return "unknown"
	}
}

// WorkItem is a unit of scrape or download work. It is either a ScrapeTask
// or a DownloadTask. Items are values: once enqueued they are never mutated,
// a retry enqueues a copy with Attempt incremented.
type WorkItem interface {
	Kind() WorkKind
	// DomainKey returns the queue shard and concurrency bucket for the item.
	DomainKey() (DomainKey, error)
	// Identity returns a stable key used for deduplication and history.
	Identity() string
	// Target returns the URL the item operates on.
	Target() string
	// Attempts returns how many times the item has been executed before.
	Attempts() int
	// Retry returns a copy of the item with its attempt count incremented.
	Retry() WorkItem
}

// ScrapeTask asks a Scraper to fetch and parse a page.
type ScrapeTask struct {
	URL     string
	Depth   int
	Origin  string // URL of the page that linked here; empty for seeds
	Attempt int
}

var _ WorkItem = ScrapeTask{}

func (t ScrapeTask) Kind() WorkKind                { return KindScrape }
func (t ScrapeTask) DomainKey() (DomainKey, error) { return ParseDomain(t.URL) }
func (t ScrapeTask) Identity() string              { return Identity(t.URL) }
func (t ScrapeTask) Target() string                { return t.URL }
func (t ScrapeTask) Attempts() int                 { return t.Attempt }

func (t ScrapeTask) Retry() WorkItem {
	t.Attempt++
	return t
}

// DownloadTask asks a Transferer to fetch a file to Destination.
type DownloadTask struct {
	URL          string
	Destination  string
	ExpectedSize int64     // 0 if unknown
	Domain       DomainKey // derived from URL when empty
	Origin       string
	Attempt      int
}

var _ WorkItem = DownloadTask{}

func (t DownloadTask) Kind() WorkKind   { return KindDownload }
func (t DownloadTask) Identity() string { return Identity(t.URL) }
func (t DownloadTask) Target() string   { return t.URL }
func (t DownloadTask) Attempts() int    { return t.Attempt }

// DomainKey returns the explicit Domain if set, otherwise it parses URL.
func (t DownloadTask) DomainKey() (DomainKey, error) {
	if t.Domain != "" {
		return t.Domain, nil
	}
	return ParseDomain(t.URL)
}

func (t DownloadTask) Retry() WorkItem {
	t.Attempt++
	return t
}

// Identity computes the deduplication key for a URL. Fragments are stripped
// and the scheme and host are lower-cased before hashing, so URLs differing
// only in those respects share an identity.
func Identity(rawURL string) string {
	normalized := rawURL
	if idx := strings.Index(normalized, "#"); idx != -1 {
		normalized = normalized[:idx]
	}
	if u, err := url.Parse(normalized); err == nil {
		u.Scheme = strings.ToLower(u.Scheme)
		u.Host = strings.ToLower(u.Host)
		normalized = u.String()
	}
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}
