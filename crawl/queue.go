package crawl

import (
	"sort"
	"sync"

	"github.com/fwojciec/fetchq"
	"github.com/fwojciec/fetchq/bloom"
)

// entry is a queued item stamped with its admission order.
type entry struct {
	item fetchq.WorkItem
	seq  uint64
}

// Queue is a FIFO of work items for a single domain. It records the deepest
// backlog it has held so growth can be monitored.
// It is safe for concurrent use by multiple goroutines.
type Queue struct {
	mu        sync.Mutex
	entries   []entry
	head      int
	seq       uint64
	highWater int
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an item at the tail.
func (q *Queue) Push(item fetchq.WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	q.pushLocked(entry{item: item, seq: q.seq})
}

func (q *Queue) push(e entry) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushLocked(e)
}

func (q *Queue) pushLocked(e entry) {
	q.entries = append(q.entries, e)
	if n := len(q.entries) - q.head; n > q.highWater {
		q.highWater = n
	}
}

// Pop removes and returns the oldest item.
// The bool result is false if the queue is empty.
func (q *Queue) Pop() (fetchq.WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.head == len(q.entries) {
		return nil, false
	}
	e := q.entries[q.head]
	q.entries[q.head] = entry{}
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 64 && q.head*2 >= len(q.entries) {
		n := copy(q.entries, q.entries[q.head:])
		q.entries = q.entries[:n]
		q.head = 0
	}
	return e.item, true
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) - q.head
}

// HighWater returns the largest backlog the queue has held.
func (q *Queue) HighWater() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.highWater
}

// Drain removes and returns every queued item, oldest first.
func (q *Queue) Drain() []fetchq.WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]fetchq.WorkItem, 0, len(q.entries)-q.head)
	for _, e := range q.entries[q.head:] {
		items = append(items, e.item)
	}
	q.entries = nil
	q.head = 0
	return items
}

// headSeq returns the admission stamp of the oldest item.
func (q *Queue) headSeq() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.entries) {
		return 0, false
	}
	return q.entries[q.head].seq, true
}

// Dedupe configuration for scrape queues.
const (
	// dedupeExpectedItems is the expected number of identities for Bloom filter sizing.
	dedupeExpectedItems = 100000
	// dedupeFalsePositiveRate is the acceptable false positive rate for deduplication.
	dedupeFalsePositiveRate = 0.001
)

// QueueManager owns one Queue per domain for a pipeline stage.
// Shards are created lazily and never removed during a run.
//
// Besides queued items, the manager counts items that have been dequeued
// but not yet reported Done. The sum is Pending, which reaches zero only
// when the stage is quiescent.
//
// QueueManager is safe for concurrent use by multiple goroutines.
type QueueManager struct {
	mu      sync.Mutex
	shards  map[fetchq.DomainKey]*Queue
	domains []fetchq.DomainKey
	seq     uint64
	depth   int
	pending int
	seen    *bloom.Filter
	onAdmit func(fetchq.WorkItem)
	changed *signal
}

// QueueOption configures a QueueManager.
type QueueOption func(*QueueManager)

// WithDedupe rejects items whose identity was admitted before.
// Requeued retries bypass the check.
func WithDedupe() QueueOption {
	return func(m *QueueManager) {
		m.seen = bloom.NewFilter(dedupeExpectedItems, dedupeFalsePositiveRate)
	}
}

// WithAdmitHook calls fn for every item accepted by Enqueue, before the
// item becomes visible to Dequeue. fn must not call back into the manager.
func WithAdmitHook(fn func(fetchq.WorkItem)) QueueOption {
	return func(m *QueueManager) {
		m.onAdmit = fn
	}
}

// NewQueueManager creates an empty QueueManager.
func NewQueueManager(opts ...QueueOption) *QueueManager {
	m := &QueueManager{
		shards:  make(map[fetchq.DomainKey]*Queue),
		changed: newSignal(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Enqueue appends the item to the shard for its domain.
// Returns false if deduplication rejected the item.
// Returns EINVALID if the domain cannot be derived from the item's URL.
func (m *QueueManager) Enqueue(item fetchq.WorkItem) (bool, error) {
	return m.enqueue(item, true)
}

// Requeue appends a retry of an item at the tail of its domain queue,
// bypassing deduplication.
func (m *QueueManager) Requeue(item fetchq.WorkItem) error {
	_, err := m.enqueue(item, false)
	return err
}

func (m *QueueManager) enqueue(item fetchq.WorkItem, first bool) (bool, error) {
	domain, err := item.DomainKey()
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if first && m.seen != nil && !m.seen.Mark(item.Identity()) {
		m.mu.Unlock()
		return false, nil
	}
	if first && m.onAdmit != nil {
		m.onAdmit(item)
	}
	shard, ok := m.shards[domain]
	if !ok {
		shard = NewQueue()
		m.shards[domain] = shard
		m.domains = append(m.domains, domain)
	}
	m.seq++
	shard.push(entry{item: item, seq: m.seq})
	m.depth++
	m.pending++
	m.mu.Unlock()

	m.changed.Broadcast()
	return true, nil
}

// Dequeue removes the oldest item for the domain.
// The bool result is false if the domain has nothing queued.
func (m *QueueManager) Dequeue(domain fetchq.DomainKey) (fetchq.WorkItem, bool) {
	m.mu.Lock()
	shard, ok := m.shards[domain]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	item, ok := shard.Pop()
	if ok {
		m.depth--
	}
	emptied := ok && m.depth == 0
	m.mu.Unlock()

	if emptied {
		m.changed.Broadcast()
	}
	return item, ok
}

// DequeueAny removes the oldest item among domains that accept it.
// Candidate domains are offered to accept in order of their oldest item's
// age; the first domain for which accept returns true yields its item.
// accept typically reserves a concurrency permit, so it is called at most
// once with a true result.
func (m *QueueManager) DequeueAny(accept func(fetchq.DomainKey) bool) (fetchq.WorkItem, fetchq.DomainKey, bool) {
	item, domain, ok := m.dequeueAny(accept)
	if ok && m.TotalDepth() == 0 {
		m.changed.Broadcast()
	}
	return item, domain, ok
}

func (m *QueueManager) dequeueAny(accept func(fetchq.DomainKey) bool) (fetchq.WorkItem, fetchq.DomainKey, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	type candidate struct {
		domain fetchq.DomainKey
		seq    uint64
	}
	var candidates []candidate
	for _, domain := range m.domains {
		if seq, ok := m.shards[domain].headSeq(); ok {
			candidates = append(candidates, candidate{domain: domain, seq: seq})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].seq < candidates[j].seq
	})

	for _, c := range candidates {
		if !accept(c.domain) {
			continue
		}
		item, _ := m.shards[c.domain].Pop()
		m.depth--
		return item, c.domain, true
	}
	return nil, "", false
}

// Done records that a dequeued item reached an outcome. Any items it
// produced must be enqueued before Done is called.
func (m *QueueManager) Done() {
	m.mu.Lock()
	m.pending--
	m.mu.Unlock()
	m.changed.Broadcast()
}

// Depth returns the number of items queued for the domain.
func (m *QueueManager) Depth(domain fetchq.DomainKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	shard, ok := m.shards[domain]
	if !ok {
		return 0
	}
	return shard.Len()
}

// TotalDepth returns the number of items queued across all domains.
func (m *QueueManager) TotalDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

// Pending returns queued items plus items dequeued but not yet Done.
func (m *QueueManager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// Domains returns every domain that has had a shard, in creation order.
func (m *QueueManager) Domains() []fetchq.DomainKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fetchq.DomainKey(nil), m.domains...)
}

// HighWater returns the largest backlog the domain's shard has held.
func (m *QueueManager) HighWater(domain fetchq.DomainKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	shard, ok := m.shards[domain]
	if !ok {
		return 0
	}
	return shard.HighWater()
}

// Drain removes every queued item across all domains and returns them.
// Drained items no longer count as pending.
func (m *QueueManager) Drain() []fetchq.WorkItem {
	m.mu.Lock()
	var items []fetchq.WorkItem
	for _, domain := range m.domains {
		items = append(items, m.shards[domain].Drain()...)
	}
	m.depth = 0
	m.pending -= len(items)
	m.mu.Unlock()

	m.changed.Broadcast()
	return items
}

// Changed returns a channel closed on the next enqueue, Done or Drain,
// and when a dequeue leaves every shard empty.
func (m *QueueManager) Changed() <-chan struct{} {
	return m.changed.Wait()
}
