// Package redis provides a Redis-backed download history so several fetchq
// processes can share one record of completed downloads.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces history keys.
const DefaultPrefix = "fetchq:history:"

// Ensure HistoryStore implements fetchq.HistoryStore at compile time.
var _ fetchq.HistoryStore = (*HistoryStore)(nil)

// commander is the subset of *redis.Client used by HistoryStore.
type commander interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// HistoryStore implements fetchq.HistoryStore on Redis. Each completed
// download is stored under prefix+identity with an optional expiry.
type HistoryStore struct {
	client commander
	prefix string
	ttl    time.Duration
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithPrefix sets the key prefix. Defaults to DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *HistoryStore) {
		s.prefix = prefix
	}
}

// WithTTL expires history entries after d. Zero keeps them forever.
func WithTTL(d time.Duration) Option {
	return func(s *HistoryStore) {
		s.ttl = d
	}
}

// Open connects to the Redis server at rawURL, e.g. redis://localhost:6379/0.
// Returns EINVALID if the URL cannot be parsed.
func Open(rawURL string, opts ...Option) (*HistoryStore, error) {
	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fetchq.Errorf(fetchq.EINVALID, "invalid redis URL %q: %v", rawURL, err)
	}
	return NewHistoryStore(redis.NewClient(options), opts...), nil
}

// NewHistoryStore creates a HistoryStore using client.
func NewHistoryStore(client commander, opts ...Option) *HistoryStore {
	s := &HistoryStore{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IsCompleted reports whether the identity was recorded as completed.
func (s *HistoryStore) IsCompleted(ctx context.Context, identity string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+identity).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkCompleted records the task as completed.
func (s *HistoryStore) MarkCompleted(ctx context.Context, task fetchq.DownloadTask) error {
	domain, err := task.DomainKey()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(fetchq.HistoryEntry{
		Identity:    task.Identity(),
		URL:         task.URL,
		Domain:      domain,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return s.client.Set(ctx, s.prefix+task.Identity(), payload, s.ttl).Err()
}

// Close closes the underlying client.
func (s *HistoryStore) Close() error {
	return s.client.Close()
}
