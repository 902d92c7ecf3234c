package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fwojciec/fetchq"
	fqredis "github.com/fwojciec/fetchq/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setCall struct {
	key   string
	value any
	ttl   time.Duration
}

// fakeClient stores keys in memory and records Set calls.
type fakeClient struct {
	keys   map[string]bool
	sets   []setCall
	err    error
	closed bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{keys: make(map[string]bool)}
}

func (c *fakeClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	if c.err != nil {
		return redis.NewIntResult(0, c.err)
	}
	var n int64
	for _, k := range keys {
		if c.keys[k] {
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (c *fakeClient) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if c.err != nil {
		return redis.NewStatusResult("", c.err)
	}
	c.keys[key] = true
	c.sets = append(c.sets, setCall{key: key, value: value, ttl: ttl})
	return redis.NewStatusResult("OK", nil)
}

func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func TestHistoryStore(t *testing.T) {
	t.Parallel()

	t.Run("marks and reports completion", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient()
		store := fqredis.NewHistoryStore(client)
		ctx := context.Background()
		task := fetchq.DownloadTask{URL: "https://cdn.example.com/a.jpg"}

		done, err := store.IsCompleted(ctx, task.Identity())
		require.NoError(t, err)
		assert.False(t, done)

		require.NoError(t, store.MarkCompleted(ctx, task))

		done, err = store.IsCompleted(ctx, task.Identity())
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("stores entry under prefixed key with ttl", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient()
		store := fqredis.NewHistoryStore(client, fqredis.WithPrefix("test:"), fqredis.WithTTL(time.Hour))
		task := fetchq.DownloadTask{URL: "https://cdn.example.com/a.jpg"}

		require.NoError(t, store.MarkCompleted(context.Background(), task))

		require.Len(t, client.sets, 1)
		call := client.sets[0]
		assert.Equal(t, "test:"+task.Identity(), call.key)
		assert.Equal(t, time.Hour, call.ttl)

		var entry fetchq.HistoryEntry
		require.NoError(t, json.Unmarshal(call.value.([]byte), &entry))
		assert.Equal(t, task.URL, entry.URL)
		assert.Equal(t, fetchq.DomainKey("example.com"), entry.Domain)
	})

	t.Run("propagates client errors", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient()
		client.err = errors.New("connection refused")
		store := fqredis.NewHistoryStore(client)

		_, err := store.IsCompleted(context.Background(), "abc")
		require.Error(t, err)

		err = store.MarkCompleted(context.Background(), fetchq.DownloadTask{URL: "https://example.com/a.jpg"})
		require.Error(t, err)
	})

	t.Run("rejects tasks without a domain", func(t *testing.T) {
		t.Parallel()

		store := fqredis.NewHistoryStore(newFakeClient())

		err := store.MarkCompleted(context.Background(), fetchq.DownloadTask{URL: "not a url"})
		assert.Equal(t, fetchq.EINVALID, fetchq.ErrorCode(err))
	})

	t.Run("close closes client", func(t *testing.T) {
		t.Parallel()

		client := newFakeClient()
		require.NoError(t, fqredis.NewHistoryStore(client).Close())
		assert.True(t, client.closed)
	})
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("rejects malformed URL", func(t *testing.T) {
		t.Parallel()

		_, err := fqredis.Open("http://localhost:6379")
		assert.Equal(t, fetchq.EINVALID, fetchq.ErrorCode(err))
	})

	t.Run("accepts redis URL without connecting", func(t *testing.T) {
		t.Parallel()

		store, err := fqredis.Open("redis://localhost:6379/0")
		require.NoError(t, err)
		require.NoError(t, store.Close())
	})
}
