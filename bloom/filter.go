// Package bloom provides work-item deduplication using Bloom filters.
package bloom

import "github.com/bits-and-blooms/bloom/v3"

// Filter remembers item identities seen during a run. It is not safe for
// concurrent use; callers serialize access.
type Filter struct {
	f *bloom.BloomFilter
}

// NewFilter creates a new Bloom filter sized for n expected identities
// with the given false positive rate.
func NewFilter(n uint, fpRate float64) *Filter {
	return &Filter{
		f: bloom.NewWithEstimates(n, fpRate),
	}
}

// Seen reports whether the identity might have been added.
// False positives are possible; false negatives are not.
func (f *Filter) Seen(identity string) bool {
	return f.f.TestString(identity)
}

// Mark adds the identity and reports whether it was new.
func (f *Filter) Mark(identity string) bool {
	return !f.f.TestOrAddString(identity)
}

// EstimatedCount returns the approximate number of identities marked.
func (f *Filter) EstimatedCount() uint {
	return uint(f.f.ApproximatedSize())
}
