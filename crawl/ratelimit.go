package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/fetchq"
	"golang.org/x/time/rate"
)

var _ fetchq.DomainLimiter = (*DomainLimiter)(nil)

// NewGlobalLimiter creates a limiter shared by every request of a run.
// Returns nil when rps is zero or negative, which disables the global limit.
func NewGlobalLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// DomainLimiter spaces request starts within each domain using token
// buckets, optionally behind a limiter shared across all domains.
// Each domain gets its own limiter with a burst of 1 (no bursting allowed),
// so consecutive starts to one domain are at least delay apart regardless
// of how many workers serve it.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[fetchq.DomainKey]*rate.Limiter
	delay    time.Duration
	global   *rate.Limiter
}

// NewDomainLimiter creates a DomainLimiter with the given per-domain spacing.
// A zero delay disables per-domain spacing. global may be nil.
func NewDomainLimiter(delay time.Duration, global *rate.Limiter) *DomainLimiter {
	return &DomainLimiter{
		limiters: make(map[fetchq.DomainKey]*rate.Limiter),
		delay:    delay,
		global:   global,
	}
}

// Wait blocks until both the global and the domain limit allow a request.
// Returns the context's error if it is done before the wait completes, or a
// transient failure if the wait would outlast the context's deadline.
func (d *DomainLimiter) Wait(ctx context.Context, domain fetchq.DomainKey) error {
	if d.global != nil {
		if err := d.global.Wait(ctx); err != nil {
			return waitError(ctx, err)
		}
	}
	if d.delay <= 0 {
		return ctx.Err()
	}

	d.mu.Lock()
	limiter, ok := d.limiters[domain]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(d.delay), 1)
		d.limiters[domain] = limiter
	}
	d.mu.Unlock()

	return waitError(ctx, limiter.Wait(ctx))
}

func waitError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fetchq.Transient("rate limit", err)
}
