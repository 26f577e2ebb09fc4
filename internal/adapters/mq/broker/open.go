package broker

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Open returns the Broker for backend.
func Open(ctx context.Context, backend string, cfg RedisConfig, opts ...Option) (Broker, error) {
	switch backend {
	case "", BackendMemory:
		return NewInMemoryBroker(opts...), nil
	case BackendRedis:
		return NewRedisBroker(ctx, cfg, opts...)
	default:
		return nil, fmt.Errorf("%q: %w", backend, ErrUnknownBackend)
	}
}
