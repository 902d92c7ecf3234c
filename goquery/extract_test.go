package goquery_test

import (
	"testing"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(url, html string) *fetchq.Page {
	return &fetchq.Page{URL: url, ContentType: "text/html", Body: []byte(html)}
}

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts embedded media and page links", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<img src="/img/a.jpg">
			<video><source src="https://cdn.example.com/v.mp4"></video>
			<a href="/gallery/2">next page</a>
			<a href="/files/archive.zip">download</a>
			<a href="/img/a.jpg">full size</a>
		</body></html>`

		links, err := goquery.NewExtractor().Extract(page("https://example.com/gallery/1", html))

		require.NoError(t, err)
		assert.Equal(t, []fetchq.Link{
			{URL: "https://example.com/img/a.jpg", Kind: fetchq.LinkAsset},
			{URL: "https://cdn.example.com/v.mp4", Kind: fetchq.LinkAsset},
			{URL: "https://example.com/gallery/2", Kind: fetchq.LinkPage},
			{URL: "https://example.com/files/archive.zip", Kind: fetchq.LinkPage},
		}, links)
	})

	t.Run("skips non-http and self links", func(t *testing.T) {
		t.Parallel()

		html := `<a href="mailto:a@b.c">mail</a>
			<a href="javascript:void(0)">js</a>
			<a href="#top">top</a>
			<img src="data:image/png;base64,AAAA">`

		links, err := goquery.NewExtractor().Extract(page("https://example.com/p", html))

		require.NoError(t, err)
		assert.Empty(t, links)
	})

	t.Run("honors base href", func(t *testing.T) {
		t.Parallel()

		html := `<head><base href="https://static.example.com/x/"></head><img src="a.png">`

		links, err := goquery.NewExtractor().Extract(page("https://example.com/p", html))

		require.NoError(t, err)
		require.Len(t, links, 1)
		assert.Equal(t, "https://static.example.com/x/a.png", links[0].URL)
	})

	t.Run("uses custom selectors", func(t *testing.T) {
		t.Parallel()

		html := `<div class="post"><a class="full" href="/raw/123">view</a></div><img src="/thumb.jpg">`
		e := goquery.NewExtractor(goquery.SelectorConfig{Selector: "a.full", Attr: "href", Kind: fetchq.LinkAsset})

		links, err := e.Extract(page("https://example.com/post", html))

		require.NoError(t, err)
		assert.Equal(t, []fetchq.Link{{URL: "https://example.com/raw/123", Kind: fetchq.LinkAsset}}, links)
	})

	t.Run("returns error for invalid base URL", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.NewExtractor().Extract(page("://bad", "<html></html>"))
		assert.Equal(t, fetchq.EINVALID, fetchq.ErrorCode(err))
	})
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	html := `<a class="full" href="/raw/1">x</a><img src="/t.jpg">`

	t.Run("uses the extractor registered for the page domain", func(t *testing.T) {
		t.Parallel()

		r := goquery.NewRegistry(goquery.NewExtractor())
		r.Register("example.com", goquery.NewExtractor(goquery.SelectorConfig{Selector: "a.full", Attr: "href", Kind: fetchq.LinkAsset}))

		links, err := r.Extract(page("https://www.example.com/post", html))

		require.NoError(t, err)
		assert.Equal(t, []fetchq.Link{{URL: "https://www.example.com/raw/1", Kind: fetchq.LinkAsset}}, links)
	})

	t.Run("falls back for other domains", func(t *testing.T) {
		t.Parallel()

		r := goquery.NewRegistry(goquery.NewExtractor())
		r.Register("example.com", goquery.NewExtractor(goquery.SelectorConfig{Selector: "a.full", Attr: "href", Kind: fetchq.LinkAsset}))

		links, err := r.Extract(page("https://other.org/post", html))

		require.NoError(t, err)
		assert.Len(t, links, 2)
	})

	t.Run("lists registered domains", func(t *testing.T) {
		t.Parallel()

		r := goquery.NewRegistry(goquery.NewExtractor())
		r.Register("b.com", goquery.NewExtractor())
		r.Register("a.com", goquery.NewExtractor())

		assert.Equal(t, []fetchq.DomainKey{"a.com", "b.com"}, r.List())
	})
}
