package access

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered means the sender has no users row. Registration resolves
	// it before any handler runs, so it only surfaces when policies are chained
	// in the wrong order.
	ErrNotRegistered = errors.New("sender is not registered")
	// ErrNotAuthorized means the sender lacks the privilege the handler requires.
	ErrNotAuthorized = errors.New("sender is not authorized")
)

// StoreFault is any failure talking to the user or admin store.
type StoreFault struct {
	Op  string
	Err error
}

func (e *StoreFault) Error() string {
	return fmt.Sprintf("store fault: %s: %v", e.Op, e.Err)
}

func (e *StoreFault) Unwrap() error { return e.Err }
