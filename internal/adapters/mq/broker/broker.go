package broker

import (
	"context"
	"sync"

	"github.com/okian/overcall/pkg/metrics"
)

const defaultSubscriberBuffer = 64

// Broker publishes events to every current subscriber. Delivery is best
// effort: Publish never blocks on a slow subscriber.
type Broker interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe returns a channel of events and a cancel func. The channel
	// is closed on cancel, when ctx is done, or when the broker closes.
	Subscribe(ctx context.Context) (<-chan Event, func())
	Subscribers() int
	Close() error
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) stop() {
	s.once.Do(func() {
		close(s.ch)
		close(s.done)
	})
}

// InMemoryBroker fans out within the process.
type InMemoryBroker struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	buffer int
	closed bool
}

// NewInMemoryBroker creates an in-process broker.
func NewInMemoryBroker(opts ...Option) *InMemoryBroker {
	b := &InMemoryBroker{
		subs:   make(map[uint64]*subscriber),
		buffer: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish implements Broker.
func (b *InMemoryBroker) Publish(ctx context.Context, e Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			metrics.RecordEventDropped(e.Type)
		}
	}
	metrics.RecordEventPublished(e.Type)
	return nil
}

// Subscribe implements Broker.
func (b *InMemoryBroker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscriber{ch: make(chan Event, b.buffer), done: make(chan struct{})}
	if b.closed {
		s.stop()
		return s.ch, func() {}
	}
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	metrics.UpdateStreamSubscribers(len(b.subs))

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			metrics.UpdateStreamSubscribers(len(b.subs))
		}
		s.stop()
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-s.done:
		}
	}()
	return s.ch, cancel
}

// Subscribers returns the number of live subscribers.
func (b *InMemoryBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later publishes fail with ErrClosed.
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, s := range b.subs {
		s.stop()
		delete(b.subs, id)
	}
	metrics.UpdateStreamSubscribers(0)
	return nil
}
