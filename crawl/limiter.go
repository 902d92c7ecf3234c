package crawl

import (
	"context"
	"sync"

	"github.com/fwojciec/fetchq"
)

// Limiter enforces a global ceiling and a per-domain ceiling on the number
// of concurrently held permits. A ceiling of zero or less means unlimited.
//
// Limiter is safe for concurrent use by multiple goroutines.
type Limiter struct {
	mu        sync.Mutex
	global    int
	perDomain int
	active    int
	byDomain  map[fetchq.DomainKey]int
	changed   *signal
}

// NewLimiter creates a Limiter with the given ceilings.
func NewLimiter(global, perDomain int) *Limiter {
	return &Limiter{
		global:    global,
		perDomain: perDomain,
		byDomain:  make(map[fetchq.DomainKey]int),
		changed:   newSignal(),
	}
}

// Permit is one unit of held concurrency for a domain.
type Permit struct {
	limiter *Limiter
	domain  fetchq.DomainKey
	once    sync.Once
}

// Domain returns the domain the permit was acquired for.
func (p *Permit) Domain() fetchq.DomainKey {
	return p.domain
}

// Release returns the permit to its Limiter. Releasing twice is a no-op.
func (p *Permit) Release() {
	p.once.Do(func() {
		p.limiter.release(p.domain)
	})
}

// TryAcquire acquires a permit for the domain if both ceilings allow it.
func (l *Limiter) TryAcquire(domain fetchq.DomainKey) (*Permit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.availableLocked(domain) {
		return nil, false
	}
	l.active++
	l.byDomain[domain]++
	return &Permit{limiter: l, domain: domain}, true
}

// Acquire blocks until a permit for the domain is available.
// Returns the context's error if it is done first.
func (l *Limiter) Acquire(ctx context.Context, domain fetchq.DomainKey) (*Permit, error) {
	for {
		changed := l.changed.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if p, ok := l.TryAcquire(domain); ok {
			return p, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-changed:
		}
	}
}

// Available reports whether a permit for the domain could be acquired now.
func (l *Limiter) Available(domain fetchq.DomainKey) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableLocked(domain)
}

func (l *Limiter) availableLocked(domain fetchq.DomainKey) bool {
	if l.global > 0 && l.active >= l.global {
		return false
	}
	if l.perDomain > 0 && l.byDomain[domain] >= l.perDomain {
		return false
	}
	return true
}

// Active returns the number of permits held across all domains.
func (l *Limiter) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// ActiveFor returns the number of permits held for the domain.
func (l *Limiter) ActiveFor(domain fetchq.DomainKey) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byDomain[domain]
}

// Changed returns a channel closed on the next permit release.
func (l *Limiter) Changed() <-chan struct{} {
	return l.changed.Wait()
}

func (l *Limiter) release(domain fetchq.DomainKey) {
	l.mu.Lock()
	l.active--
	if n := l.byDomain[domain] - 1; n > 0 {
		l.byDomain[domain] = n
	} else {
		delete(l.byDomain, domain)
	}
	l.mu.Unlock()

	l.changed.Broadcast()
}
