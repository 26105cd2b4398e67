package booking

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable matches every StoreError via errors.Is.
var ErrStoreUnavailable = errors.New("store unavailable")

// StoreError is a fatal persistence failure. Rows written before it are left in place.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrStoreUnavailable
}
