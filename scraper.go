package fetchq

import "context"

// Page is a fetched document ready for link extraction.
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// PageFetcher retrieves pages for scraping.
// Implementations may use browser automation to handle JavaScript-rendered content.
type PageFetcher interface {
	// Fetch retrieves the page at url.
	// The context controls timeout and cancellation.
	Fetch(ctx context.Context, url string) (*Page, error)

	// Close releases resources.
	Close() error
}

// LinkKind separates links worth scraping from files worth downloading.
type LinkKind int

const (
	LinkPage LinkKind = iota
	LinkAsset
)

// Link is a URL discovered on a page.
type Link struct {
	URL  string
	Kind LinkKind
	// Size is the advertised size in bytes, if the page states one.
	Size int64
}

// LinkExtractor finds page and asset links in a fetched page.
type LinkExtractor interface {
	Extract(page *Page) ([]Link, error)
}

// Scraper fetches and parses a page, returning the work it discovers.
// Site-specific scrapers plug in here; the core only sees the child items.
type Scraper interface {
	Scrape(ctx context.Context, task ScrapeTask) ([]WorkItem, error)
}
