package batch

import (
	"time"

	"github.com/google/uuid"
)

// DLQMaxRequeues is the number of times a DeadLetterItem may be
// requeued before it is no longer selected by requeue_dlq. Requeuing
// never deletes the DLQ row — it only increments RetryCount — so items
// at the cap remain visible to diagnostics (and to the monitor's
// DLQ-growth metric) instead of silently vanishing.
const DLQMaxRequeues = 3

// DeadLetterItem is a parked failure: a Batch that exhausted its retry
// budget, or whose handler reported a permanent failure before the
// budget was exhausted.
//
// Requeuing creates a fresh pending Batch carrying the same
// (ItemType, Metadata) and increments RetryCount; it does not delete or
// otherwise mutate the original DLQ row beyond that counter. There is
// no back-link from the DLQ row to the batch it spawned on requeue —
// the schema has no cycles (see design notes).
type DeadLetterItem struct {
	Id uuid.UUID

	ItemType     string
	ErrorMessage string

	OriginalBatchId uuid.UUID
	OriginalItemId  string

	RetryCount int
	Metadata   Metadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exhausted reports whether this item has been requeued the maximum
// number of times and should no longer be selected by requeue_dlq.
func (d *DeadLetterItem) Exhausted() bool {
	return d.RetryCount >= DLQMaxRequeues
}
