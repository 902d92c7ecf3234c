package crawl_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/crawl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_TryAcquire(t *testing.T) {
	t.Parallel()

	t.Run("enforces per-domain ceiling", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(10, 1)
		_, ok := l.TryAcquire("a.com")
		require.True(t, ok)

		_, ok = l.TryAcquire("a.com")
		assert.False(t, ok, "domain at ceiling")

		_, ok = l.TryAcquire("b.com")
		assert.True(t, ok, "other domain unaffected")
	})

	t.Run("enforces global ceiling", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(2, 5)
		_, ok := l.TryAcquire("a.com")
		require.True(t, ok)
		_, ok = l.TryAcquire("b.com")
		require.True(t, ok)

		_, ok = l.TryAcquire("c.com")
		assert.False(t, ok, "global ceiling reached")
		assert.False(t, l.Available("c.com"))
		assert.Equal(t, 2, l.Active())
	})

	t.Run("release frees both slots once", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(1, 1)
		p, ok := l.TryAcquire("a.com")
		require.True(t, ok)
		assert.Equal(t, fetchq.DomainKey("a.com"), p.Domain())

		p.Release()
		p.Release()

		assert.Zero(t, l.Active())
		assert.Zero(t, l.ActiveFor("a.com"))
		_, ok = l.TryAcquire("a.com")
		assert.True(t, ok)
	})

	t.Run("zero ceilings are unlimited", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(0, 0)
		for range 100 {
			_, ok := l.TryAcquire("a.com")
			require.True(t, ok)
		}
		assert.Equal(t, 100, l.ActiveFor("a.com"))
	})
}

func TestLimiter_Acquire(t *testing.T) {
	t.Parallel()

	t.Run("blocks until a permit is released", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(1, 1)
		held, ok := l.TryAcquire("a.com")
		require.True(t, ok)

		acquired := make(chan *crawl.Permit)
		go func() {
			p, err := l.Acquire(context.Background(), "a.com")
			if err == nil {
				acquired <- p
			}
		}()

		select {
		case <-acquired:
			t.Fatal("acquired while ceiling reached")
		case <-time.After(30 * time.Millisecond):
		}

		held.Release()

		select {
		case p := <-acquired:
			p.Release()
		case <-time.After(time.Second):
			t.Fatal("waiter was not woken by release")
		}
	})

	t.Run("returns context error", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(1, 1)
		_, ok := l.TryAcquire("a.com")
		require.True(t, ok)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := l.Acquire(ctx, "a.com")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("ceilings hold under contention", func(t *testing.T) {
		t.Parallel()

		l := crawl.NewLimiter(3, 1)
		domains := []fetchq.DomainKey{"a.com", "b.com", "c.com", "d.com"}

		var global, maxGlobal atomic.Int32
		perDomain := make(map[fetchq.DomainKey]*atomic.Int32)
		for _, d := range domains {
			perDomain[d] = &atomic.Int32{}
		}
		var violations atomic.Int32

		var wg sync.WaitGroup
		for i := range 40 {
			domain := domains[i%len(domains)]
			wg.Add(1)
			go func() {
				defer wg.Done()
				p, err := l.Acquire(context.Background(), domain)
				if err != nil {
					return
				}
				defer p.Release()

				g := global.Add(1)
				for {
					m := maxGlobal.Load()
					if g <= m || maxGlobal.CompareAndSwap(m, g) {
						break
					}
				}
				if perDomain[domain].Add(1) > 1 {
					violations.Add(1)
				}
				time.Sleep(time.Millisecond)
				perDomain[domain].Add(-1)
				global.Add(-1)
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, maxGlobal.Load(), int32(3))
		assert.Zero(t, violations.Load())
		assert.Zero(t, l.Active())
	})
}
