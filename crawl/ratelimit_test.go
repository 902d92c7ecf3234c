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

func TestDomainLimiter(t *testing.T) {
	t.Parallel()

	t.Run("implements fetchq.DomainLimiter interface", func(t *testing.T) {
		t.Parallel()
		var _ fetchq.DomainLimiter = crawl.NewDomainLimiter(time.Second, nil)
	})

	t.Run("allows immediate first request", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(100*time.Millisecond, nil)

		start := time.Now()
		err := limiter.Wait(context.Background(), "example.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 50*time.Millisecond, "first request should be immediate")
	})

	t.Run("spaces requests to same domain", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(100*time.Millisecond, nil)

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		start := time.Now()
		err = limiter.Wait(context.Background(), "example.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 80*time.Millisecond, "should wait for download delay")
	})

	t.Run("different domains have independent spacing", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(100*time.Millisecond, nil)

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		start := time.Now()
		err = limiter.Wait(context.Background(), "other.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.Less(t, elapsed, 50*time.Millisecond, "different domain should not wait")
	})

	t.Run("zero delay never waits", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(0, nil)

		start := time.Now()
		for range 20 {
			require.NoError(t, limiter.Wait(context.Background(), "example.com"))
		}
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("global limit applies across domains", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(0, crawl.NewGlobalLimiter(10))

		// The burst of 10 is consumed immediately.
		for range 10 {
			require.NoError(t, limiter.Wait(context.Background(), "a.com"))
		}

		start := time.Now()
		err := limiter.Wait(context.Background(), "b.com")
		elapsed := time.Since(start)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "should wait for global limit")
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(time.Second, nil)

		err := limiter.Wait(context.Background(), "example.com")
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		err = limiter.Wait(ctx, "example.com")
		assert.Error(t, err, "should fail when context times out")
	})

	t.Run("wait beyond the deadline is transient", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(time.Hour, nil)
		require.NoError(t, limiter.Wait(context.Background(), "example.com"))

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := limiter.Wait(ctx, "example.com")

		assert.True(t, fetchq.IsTransient(err))
		assert.Equal(t, "rate limit", fetchq.FailureReason(err))
	})

	t.Run("cancelled wait reports cancellation", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(time.Hour, nil)
		require.NoError(t, limiter.Wait(context.Background(), "example.com"))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := limiter.Wait(ctx, "example.com")

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, fetchq.ReasonCancelled, fetchq.FailureReason(err))
	})

	t.Run("concurrent requests are serialized per domain", func(t *testing.T) {
		t.Parallel()

		limiter := crawl.NewDomainLimiter(10*time.Millisecond, nil)

		var wg sync.WaitGroup
		var completed atomic.Int32

		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := limiter.Wait(context.Background(), "example.com")
				if err == nil {
					completed.Add(1)
				}
			}()
		}

		wg.Wait()
		assert.Equal(t, int32(5), completed.Load(), "all requests should complete")
	})
}

func TestNewGlobalLimiter(t *testing.T) {
	t.Parallel()

	assert.Nil(t, crawl.NewGlobalLimiter(0))
	assert.Nil(t, crawl.NewGlobalLimiter(-1))
	assert.NotNil(t, crawl.NewGlobalLimiter(0.5))
}
