package http

import (
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/fwojciec/fetchq"
)

// Ensure FeedExtractor implements fetchq.LinkExtractor at compile time.
var _ fetchq.LinkExtractor = (*FeedExtractor)(nil)

// FeedExtractor extracts links from XML documents: sitemaps and sitemap
// indexes, RSS feeds and Atom feeds. Enclosures and image sitemap entries
// become assets; other locations become pages unless they look like media.
type FeedExtractor struct{}

// NewFeedExtractor creates a FeedExtractor.
func NewFeedExtractor() *FeedExtractor {
	return &FeedExtractor{}
}

// Extract implements fetchq.LinkExtractor.
func (e *FeedExtractor) Extract(page *fetchq.Page) ([]fetchq.Link, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(bytes.NewReader(page.Body)); err != nil {
		return nil, fmt.Errorf("parsing feed XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty feed XML")
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		return nil, fetchq.Errorf(fetchq.EINVALID, "invalid page URL %q", page.URL)
	}

	var links []fetchq.Link
	switch root.Tag {
	case "sitemapindex":
		for _, sitemap := range root.SelectElements("sitemap") {
			links = appendLink(links, base, childText(sitemap, "loc"), fetchq.LinkPage, 0)
		}
	case "urlset":
		for _, u := range root.SelectElements("url") {
			links = appendLink(links, base, childText(u, "loc"), classifyURL(childText(u, "loc")), 0)
			for _, img := range u.SelectElements("image:image") {
				links = appendLink(links, base, childText(img, "image:loc"), fetchq.LinkAsset, 0)
			}
		}
	case "rss":
		for _, channel := range root.SelectElements("channel") {
			for _, item := range channel.SelectElements("item") {
				for _, enc := range item.SelectElements("enclosure") {
					size, _ := strconv.ParseInt(enc.SelectAttrValue("length", "0"), 10, 64)
					links = appendLink(links, base, enc.SelectAttrValue("url", ""), fetchq.LinkAsset, size)
				}
				link := childText(item, "link")
				links = appendLink(links, base, link, classifyURL(link), 0)
			}
		}
	case "feed":
		for _, entry := range root.SelectElements("entry") {
			for _, l := range entry.SelectElements("link") {
				href := l.SelectAttrValue("href", "")
				switch l.SelectAttrValue("rel", "alternate") {
				case "enclosure":
					size, _ := strconv.ParseInt(l.SelectAttrValue("length", "0"), 10, 64)
					links = appendLink(links, base, href, fetchq.LinkAsset, size)
				case "alternate":
					links = appendLink(links, base, href, classifyURL(href), 0)
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported feed root element %q", root.Tag)
	}
	return links, nil
}

func childText(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func classifyURL(rawURL string) fetchq.LinkKind {
	if fetchq.IsMediaURL(rawURL) {
		return fetchq.LinkAsset
	}
	return fetchq.LinkPage
}

func appendLink(links []fetchq.Link, base *url.URL, ref string, kind fetchq.LinkKind, size int64) []fetchq.Link {
	if ref == "" {
		return links
	}
	u, err := base.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return links
	}
	return append(links, fetchq.Link{URL: u.String(), Kind: kind, Size: size})
}
