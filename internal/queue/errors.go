package queue

import (
	"errors"
	"fmt"
)

// FullError reports an enqueue attempt against a queue at capacity. The
// queue state is not mutated when it is returned.
type FullError struct {
	Capacity int
}

// NewFullError creates a FullError for the given capacity.
func NewFullError(capacity int) *FullError {
	return &FullError{Capacity: capacity}
}

// Error implements the error interface.
func (e *FullError) Error() string {
	return fmt.Sprintf("execution queue is full (capacity %d)", e.Capacity)
}

// IsFull checks if the error is or wraps a FullError.
func IsFull(err error) bool {
	var fe *FullError
	return errors.As(err, &fe)
}
