// Package goquery provides HTML link extraction using CSS selectors.
package goquery

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/fetchq"
)

// SelectorConfig defines a CSS selector, the attribute holding the URL and
// how matches are classified.
type SelectorConfig struct {
	Selector string
	Attr     string
	// Kind is the link kind for matches. Classify overrides it.
	Kind fetchq.LinkKind
	// Classify marks matches as assets when their URL has a media
	// extension and as pages otherwise.
	Classify bool
}

// DefaultSelectors matches embedded media, media links and pagination.
var DefaultSelectors = []SelectorConfig{
	{Selector: "img[src]", Attr: "src", Kind: fetchq.LinkAsset},
	{Selector: "img[data-src]", Attr: "data-src", Kind: fetchq.LinkAsset},
	{Selector: "video[src]", Attr: "src", Kind: fetchq.LinkAsset},
	{Selector: "video source[src]", Attr: "src", Kind: fetchq.LinkAsset},
	{Selector: "audio[src]", Attr: "src", Kind: fetchq.LinkAsset},
	{Selector: "audio source[src]", Attr: "src", Kind: fetchq.LinkAsset},
	{Selector: `meta[property="og:video"]`, Attr: "content", Kind: fetchq.LinkAsset},
	{Selector: `link[rel="next"]`, Attr: "href", Kind: fetchq.LinkPage},
	{Selector: "a[href]", Attr: "href", Classify: true},
}

// Ensure Extractor implements fetchq.LinkExtractor at compile time.
var _ fetchq.LinkExtractor = (*Extractor)(nil)

// Extractor extracts links from HTML pages.
type Extractor struct {
	configs []SelectorConfig
}

// NewExtractor creates an Extractor. With no configs, DefaultSelectors are used.
func NewExtractor(configs ...SelectorConfig) *Extractor {
	if len(configs) == 0 {
		configs = DefaultSelectors
	}
	return &Extractor{configs: configs}
}

// Extract implements fetchq.LinkExtractor.
// Links are deduplicated by URL and returned in order of first occurrence;
// a later asset match upgrades an earlier page match of the same URL.
// A <base href> in the document changes the resolution base.
func (e *Extractor) Extract(page *fetchq.Page) ([]fetchq.Link, error) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fetchq.Errorf(fetchq.EINVALID, "invalid base URL: %v", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fetchq.Errorf(fetchq.EINVALID, "failed to parse HTML: %v", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil {
			base = b
		}
	}

	// Track seen URLs with their index in the result slice for O(1) updates
	seen := make(map[string]int)
	var links []fetchq.Link

	for _, config := range e.configs {
		doc.Find(config.Selector).Each(func(_ int, sel *goquery.Selection) {
			ref, exists := sel.Attr(config.Attr)
			if !exists || ref == "" {
				return
			}

			// Skip non-HTTP links (javascript:, mailto:, etc.)
			if isNonHTTPLink(ref) {
				return
			}

			resolved := resolveURL(base, ref)
			if resolved == "" {
				return
			}

			kind := config.Kind
			if config.Classify {
				kind = classify(resolved)
			}

			if idx, ok := seen[resolved]; ok {
				if kind == fetchq.LinkAsset {
					links[idx].Kind = fetchq.LinkAsset
				}
				return
			}
			seen[resolved] = len(links)
			links = append(links, fetchq.Link{URL: resolved, Kind: kind})
		})
	}

	return links, nil
}

func classify(rawURL string) fetchq.LinkKind {
	if fetchq.IsMediaURL(rawURL) {
		return fetchq.LinkAsset
	}
	return fetchq.LinkPage
}

// resolveURL resolves a relative URL against a base URL.
// Returns empty string if the reference cannot be parsed, is not HTTP(S),
// or is self-referential (same as base URL after stripping fragment).
// Fragments are stripped from the resolved URL for deduplication purposes.
func resolveURL(base *url.URL, ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	resolved.Fragment = ""
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	result := resolved.String()
	baseNoFragment := *base
	baseNoFragment.Fragment = ""
	if result == baseNoFragment.String() {
		return ""
	}
	return result
}

// isNonHTTPLink checks if a reference is a non-HTTP link that should be skipped.
func isNonHTTPLink(ref string) bool {
	ref = strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(ref, "javascript:") ||
		strings.HasPrefix(ref, "mailto:") ||
		strings.HasPrefix(ref, "tel:") ||
		strings.HasPrefix(ref, "data:")
}
