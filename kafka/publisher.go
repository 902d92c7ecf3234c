// Package kafka publishes fetchq item events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fwojciec/fetchq"
	"github.com/segmentio/kafka-go"
)

const (
	// DefaultBufferSize is how many events may wait for the writer before
	// new events are dropped.
	DefaultBufferSize = 1024

	// DefaultWriteTimeout bounds a single batch write.
	DefaultWriteTimeout = 10 * time.Second

	maxBatch = 100
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Message is the JSON payload written for each event.
type Message struct {
	Type    string    `json:"type"`
	Kind    string    `json:"kind"`
	URL     string    `json:"url"`
	Domain  string    `json:"domain"`
	Attempt int       `json:"attempt"`
	Reason  string    `json:"reason,omitempty"`
	Error   string    `json:"error,omitempty"`
	Time    time.Time `json:"time"`
}

// EventPublisher forwards events to Kafka from a background goroutine.
// Handle never blocks; when the buffer is full the event is dropped and
// counted.
type EventPublisher struct {
	writer  messageWriter
	timeout time.Duration
	onError func(error)

	mu     sync.RWMutex
	closed bool
	events chan fetchq.Event
	done   chan struct{}

	published atomic.Int64
	dropped   atomic.Int64
}

// Option configures an EventPublisher.
type Option func(*EventPublisher)

// WithBufferSize sets the event buffer size.
func WithBufferSize(n int) Option {
	return func(p *EventPublisher) {
		p.events = make(chan fetchq.Event, n)
	}
}

// WithErrorHandler receives write failures.
func WithErrorHandler(fn func(error)) Option {
	return func(p *EventPublisher) {
		p.onError = fn
	}
}

// NewEventPublisher creates a publisher writing to topic on broker.
func NewEventPublisher(broker, topic string, opts ...Option) *EventPublisher {
	return NewEventPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}, opts...)
}

// NewEventPublisherWithWriter builds a publisher using a custom writer.
func NewEventPublisherWithWriter(writer messageWriter, opts ...Option) *EventPublisher {
	p := &EventPublisher{
		writer:  writer,
		timeout: DefaultWriteTimeout,
		events:  make(chan fetchq.Event, DefaultBufferSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Handle queues e for publishing. It satisfies fetchq.EventHandler.
func (p *EventPublisher) Handle(e fetchq.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.dropped.Add(1)
		return
	}
	select {
	case p.events <- e:
	default:
		p.dropped.Add(1)
	}
}

// Published returns the number of events written to Kafka.
func (p *EventPublisher) Published() int64 {
	return p.published.Load()
}

// Dropped returns the number of events discarded because the buffer was full
// or the publisher was closed.
func (p *EventPublisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close flushes buffered events and closes the writer.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.events)
	p.mu.Unlock()

	<-p.done
	return p.writer.Close()
}

func (p *EventPublisher) run() {
	defer close(p.done)

	batch := make([]kafka.Message, 0, maxBatch)
	for e := range p.events {
		batch = append(batch[:0], encode(e))
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-p.events:
				if !ok {
					break fill
				}
				batch = append(batch, encode(next))
			default:
				break fill
			}
		}
		p.write(batch)
	}
}

func (p *EventPublisher) write(batch []kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		if p.onError != nil {
			p.onError(err)
		}
		return
	}
	p.published.Add(int64(len(batch)))
}

func encode(e fetchq.Event) kafka.Message {
	msg := Message{
		Type:    e.Type.String(),
		Kind:    e.Kind.String(),
		URL:     e.URL,
		Domain:  e.Domain.String(),
		Attempt: e.Attempt,
		Reason:  e.Reason,
		Time:    e.Time.UTC(),
	}
	if e.Error != nil {
		msg.Error = e.Error.Error()
	}
	// Message holds only strings, ints and a time, so Marshal cannot fail.
	payload, _ := json.Marshal(msg)

	return kafka.Message{
		Key:   []byte(e.Domain),
		Value: payload,
		Time:  msg.Time,
	}
}
