package crawl_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/crawl"
	"github.com/fwojciec/fetchq/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFetcher(contentType string) *mock.PageFetcher {
	return &mock.PageFetcher{
		FetchFn: func(_ context.Context, url string) (*fetchq.Page, error) {
			return &fetchq.Page{URL: url, ContentType: contentType, Body: []byte("<html></html>")}, nil
		},
	}
}

func staticLinks(links ...fetchq.Link) *mock.LinkExtractor {
	return &mock.LinkExtractor{
		ExtractFn: func(*fetchq.Page) ([]fetchq.Link, error) { return links, nil },
	}
}

func TestScraper_Scrape(t *testing.T) {
	t.Parallel()

	t.Run("turns assets into downloads and pages into scrapes", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher: staticFetcher("text/html; charset=utf-8"),
			Pages: staticLinks(
				fetchq.Link{URL: "https://cdn.site.com/a.jpg", Kind: fetchq.LinkAsset, Size: 2048},
				fetchq.Link{URL: "https://site.com/next", Kind: fetchq.LinkPage},
			),
			Destination: func(rawURL string, domain fetchq.DomainKey) string {
				return filepath.Join("/dl", domain.String(), filepath.Base(rawURL))
			},
			MaxDepth: 1,
		}

		items, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/"})

		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, fetchq.DownloadTask{
			URL:          "https://cdn.site.com/a.jpg",
			Destination:  filepath.Join("/dl", "site.com", "a.jpg"),
			ExpectedSize: 2048,
			Domain:       "site.com",
			Origin:       "https://site.com/",
		}, items[0])
		assert.Equal(t, fetchq.ScrapeTask{URL: "https://site.com/next", Depth: 1, Origin: "https://site.com/"}, items[1])
	})

	t.Run("stops following pages at max depth", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher:  staticFetcher("text/html"),
			Pages:    staticLinks(fetchq.Link{URL: "https://site.com/deeper", Kind: fetchq.LinkPage}),
			MaxDepth: 1,
		}

		items, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/x", Depth: 1})

		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("ignores pages on other domains", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher:  staticFetcher("text/html"),
			Pages:    staticLinks(fetchq.Link{URL: "https://elsewhere.org/", Kind: fetchq.LinkPage}),
			MaxDepth: 3,
		}

		items, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/"})

		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("drops duplicate links", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher: staticFetcher("text/html"),
			Pages: staticLinks(
				fetchq.Link{URL: "https://site.com/a.png", Kind: fetchq.LinkAsset},
				fetchq.Link{URL: "https://site.com/a.png#zoom", Kind: fetchq.LinkAsset},
			),
		}

		items, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/"})

		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("uses feed extractor for XML documents", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher: staticFetcher("application/rss+xml"),
			Pages: &mock.LinkExtractor{
				ExtractFn: func(*fetchq.Page) ([]fetchq.Link, error) {
					t.Error("html extractor used for feed")
					return nil, nil
				},
			},
			Feeds: staticLinks(fetchq.Link{URL: "https://site.com/ep1.mp3", Kind: fetchq.LinkAsset}),
		}

		items, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/feed"})

		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "https://site.com/ep1.mp3", items[0].Target())
	})

	t.Run("returns fetch errors unchanged", func(t *testing.T) {
		t.Parallel()

		fetchErr := fetchq.StatusError(503, "https://site.com/")
		s := &crawl.Scraper{
			Fetcher: &mock.PageFetcher{
				FetchFn: func(context.Context, string) (*fetchq.Page, error) { return nil, fetchErr },
			},
		}

		_, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/"})
		assert.True(t, fetchq.IsTransient(err))
	})

	t.Run("extraction errors are permanent", func(t *testing.T) {
		t.Parallel()

		s := &crawl.Scraper{
			Fetcher: staticFetcher("text/html"),
			Pages: &mock.LinkExtractor{
				ExtractFn: func(*fetchq.Page) ([]fetchq.Link, error) { return nil, errors.New("bad markup") },
			},
		}

		_, err := s.Scrape(context.Background(), fetchq.ScrapeTask{URL: "https://site.com/"})
		assert.False(t, fetchq.IsTransient(err))
		assert.Equal(t, "parse error", fetchq.FailureReason(err))
	})
}
