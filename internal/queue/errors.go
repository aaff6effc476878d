package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the id does not exist under the queue, or the item has
	// already reached a terminal state. Callers must not retry blindly.
	ErrNotFound = errors.New("queue item not found")

	// ErrCorrupt means a stored row could not be decoded: the payload or
	// metadata is not valid for the target type, or an id, status or priority
	// column holds a value outside its domain.
	ErrCorrupt = errors.New("queue item unreadable")

	// ErrDatabase marks failures of the backing store.
	ErrDatabase = errors.New("queue database error")
)

// DatabaseError wraps a store failure so that it matches ErrDatabase while
// keeping the driver error reachable through errors.Is / errors.As.
func DatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDatabase, err)
}

// NotFoundError reports that id is missing from queueName or no longer live.
func NotFoundError(queueName, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, queueName, id)
}

func corruptError(id string, err error) error {
	return fmt.Errorf("%w: item %s: %w", ErrCorrupt, id, err)
}
