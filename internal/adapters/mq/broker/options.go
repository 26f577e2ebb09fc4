package broker

// Option applies a configuration option to the InMemoryBroker.
type Option func(*InMemoryBroker)

// WithSubscriberBuffer sets how many events a subscriber may fall behind
// before new ones are dropped for it.
func WithSubscriberBuffer(size int) Option {
	return func(b *InMemoryBroker) {
		if size > 0 {
			b.buffer = size
		}
	}
}
