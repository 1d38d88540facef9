package queue

import "errors"

var (
	// ErrBatchNotFound is returned when an operation targets a batch id
	// that no longer exists, or no longer exists in the expected state
	// (for example, Complete called on a row no longer Processing).
	ErrBatchNotFound = errors.New("queue: batch not found")

	// ErrDLQItemNotFound names the case of an operation targeting a DLQ
	// row that no longer exists. The bun-backed store in store/ does not
	// return it: RequeueDLQ skips a row whose counter update affects
	// nothing.
	ErrDLQItemNotFound = errors.New("queue: dead-letter item not found")

	// ErrAlreadyActive is returned by a Store's insert primitive when an
	// active (pending or processing) row already exists with the same
	// (batch_type, hash(metadata)) idempotency key.
	ErrAlreadyActive = errors.New("queue: batch already active")

	// ErrStoreUnavailable wraps a Store failure encountered during
	// claim. Per the error-handling design, this is fatal to the
	// current tick only: the tick aborts and the next tick retries.
	ErrStoreUnavailable = errors.New("queue: store unavailable")

	// ErrUnknownBatchType names a batch_type with no handler. Registry
	// does not return it: Resolve reports a missing handler through its
	// boolean result, and the dispatcher treats that batch as failed.
	ErrUnknownBatchType = errors.New("queue: unknown batch type")
)
