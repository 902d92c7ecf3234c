package goquery

import (
	"sort"

	"github.com/fwojciec/fetchq"
)

var _ fetchq.LinkExtractor = (*Registry)(nil)

// Registry routes extraction to site-specific extractors by the page's
// domain, falling back to a generic extractor when no specific extractor
// is registered.
type Registry struct {
	fallback   fetchq.LinkExtractor
	extractors map[fetchq.DomainKey]fetchq.LinkExtractor
}

// NewRegistry creates a new Registry with the given fallback extractor.
func NewRegistry(fallback fetchq.LinkExtractor) *Registry {
	return &Registry{
		fallback:   fallback,
		extractors: make(map[fetchq.DomainKey]fetchq.LinkExtractor),
	}
}

// Register adds an extractor for a domain.
// If an extractor is already registered for the domain, it is replaced.
func (r *Registry) Register(domain fetchq.DomainKey, extractor fetchq.LinkExtractor) {
	r.extractors[domain] = extractor
}

// Get returns the extractor for a page URL.
func (r *Registry) Get(pageURL string) fetchq.LinkExtractor {
	domain, err := fetchq.ParseDomain(pageURL)
	if err != nil {
		return r.fallback
	}
	if e, ok := r.extractors[domain]; ok {
		return e
	}
	return r.fallback
}

// Extract implements fetchq.LinkExtractor.
func (r *Registry) Extract(page *fetchq.Page) ([]fetchq.Link, error) {
	return r.Get(page.URL).Extract(page)
}

// List returns all registered domains, sorted.
func (r *Registry) List() []fetchq.DomainKey {
	domains := make([]fetchq.DomainKey, 0, len(r.extractors))
	for d := range r.extractors {
		domains = append(domains, d)
	}
	sort.Slice(domains, func(i, j int) bool { return domains[i] < domains[j] })
	return domains
}
