package crawl

import (
	"context"
	"mime"
	"strings"

	"github.com/fwojciec/fetchq"
)

var _ fetchq.Scraper = (*Scraper)(nil)

// DestinationFunc maps a downloadable URL to its local path.
type DestinationFunc func(rawURL string, domain fetchq.DomainKey) string

// Scraper fetches a page and turns its links into work items. Media links
// become downloads; page links on the same domain become scrapes one level
// deeper, up to MaxDepth.
type Scraper struct {
	Fetcher fetchq.PageFetcher
	// Pages extracts links from HTML documents.
	Pages fetchq.LinkExtractor
	// Feeds extracts links from sitemaps and RSS or Atom feeds. May be nil.
	Feeds       fetchq.LinkExtractor
	Destination DestinationFunc
	MaxDepth    int
}

// Scrape implements fetchq.Scraper.
func (s *Scraper) Scrape(ctx context.Context, task fetchq.ScrapeTask) ([]fetchq.WorkItem, error) {
	page, err := s.Fetcher.Fetch(ctx, task.URL)
	if err != nil {
		return nil, err
	}

	extractor := s.Pages
	if s.Feeds != nil && isFeed(page.ContentType) {
		extractor = s.Feeds
	}
	links, err := extractor.Extract(page)
	if err != nil {
		return nil, fetchq.Permanent("parse error", err)
	}

	origin, err := task.DomainKey()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var items []fetchq.WorkItem
	for _, link := range links {
		id := fetchq.Identity(link.URL)
		if seen[id] {
			continue
		}
		seen[id] = true

		switch link.Kind {
		case fetchq.LinkAsset:
			items = append(items, s.download(task, link))
		case fetchq.LinkPage:
			if task.Depth >= s.MaxDepth {
				continue
			}
			domain, err := fetchq.ParseDomain(link.URL)
			if err != nil || domain != origin {
				continue
			}
			items = append(items, fetchq.ScrapeTask{
				URL:    link.URL,
				Depth:  task.Depth + 1,
				Origin: task.URL,
			})
		}
	}
	return items, nil
}

func (s *Scraper) download(task fetchq.ScrapeTask, link fetchq.Link) fetchq.DownloadTask {
	d := fetchq.DownloadTask{
		URL:          link.URL,
		ExpectedSize: link.Size,
		Origin:       task.URL,
	}
	if domain, err := fetchq.ParseDomain(link.URL); err == nil {
		d.Domain = domain
		if s.Destination != nil {
			d.Destination = s.Destination(link.URL, domain)
		}
	}
	return d
}

// isFeed reports whether a content type denotes an XML document.
func isFeed(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasSuffix(mediaType, "/xml") || strings.HasSuffix(mediaType, "+xml")
}
