package fetchq

import "context"

// DomainLimiter spaces out requests to the same domain.
type DomainLimiter interface {
	// Wait blocks until the domain may be contacted again.
	// Returns an error if the context is canceled.
	Wait(ctx context.Context, domain DomainKey) error
}
