package repository

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Open returns the Store for backend. dsn is only used by postgres.
func Open(ctx context.Context, backend, dsn string, opts ...Option) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewTreapStore(opts...), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn)
	default:
		return nil, fmt.Errorf("%q: %w", backend, ErrUnknownBackend)
	}
}
