package repository

import (
	"errors"
	"fmt"

	"github.com/okian/overcall/internal/domain/model"
)

// Sentinel kinds for store errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
	ErrUnknownBackend  = errors.New("unknown store backend")
)

// Unavailable marks err as a store outage unless it is nil.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", model.ErrStoreUnavailable, err)
}
