// Package batch defines the durable unit of work processed by the
// queue engine: Batch, its lifecycle Status, the DeadLetterItem a
// batch becomes when retries are exhausted, and the RateLimit counters
// the rate-limit gate consults.
//
// Batch fuses what the teacher package (gqs) splits into message and
// job: a Batch carries both its payload (Metadata) and its delivery
// state (Status, retry_count, claim) in a single row, because this
// system has no separate transport-layer representation — every batch
// is created, leased, and completed against the same store row.
package batch

import (
	"time"

	"github.com/google/uuid"
)

// Batch is a single unit of pending work.
//
// Invariants:
//   - Status == Processing implies ClaimedBy and ClaimExpiresAt are set.
//   - Status == Completed implies CompletedAt is set; the row is terminal
//     and eligible for deletion by cleanup after a retention window.
//   - Status == Error implies CompletedAt is set and a corresponding
//     DeadLetterItem exists (barring a DLQ-insert failure, which is
//     logged only — see the dispatcher).
//   - At most one row with the same (BatchType, Metadata.Hash()) exists
//     while Status is Pending or Processing (the idempotency key).
type Batch struct {
	Id         uuid.UUID
	BatchType  string
	Status     Status
	Priority   int
	RetryCount int

	ItemsTotal     int
	ItemsProcessed int
	ItemsFailed    int

	ClaimedBy      string
	ClaimExpiresAt *time.Time

	// NextVisibleAt is the earliest time this batch may be claimed
	// again. It resolves the ambiguity flagged in the design notes
	// (Open Question 1): rather than encoding backoff into UpdatedAt
	// and leaving the claim predicate unfiltered, the predicate filters
	// on this column directly.
	NextVisibleAt time.Time

	StartedAt   *time.Time
	CompletedAt *time.Time

	ErrorMessage string
	Metadata     Metadata

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DefaultPriority is the default Priority assigned to a newly seeded
// batch. Priority is reserved: current claim ordering ignores it in
// favor of (RetryCount ASC, CreatedAt ASC).
const DefaultPriority = 5

// New constructs a pending Batch ready to be handed to a Store's insert
// primitive. It does not assign CreatedAt/UpdatedAt/Id — the store does,
// so that a single store implementation is the sole authority over
// those fields regardless of caller clock skew.
func New(batchType string, metadata Metadata) *Batch {
	return &Batch{
		BatchType:     batchType,
		Status:        Pending,
		Priority:      DefaultPriority,
		Metadata:      metadata,
		NextVisibleAt: time.Time{},
	}
}

// IdempotencyKey returns the (batch_type, hash(metadata)) pair used to
// enforce at-most-one-active-row semantics.
func (b *Batch) IdempotencyKey() (string, string) {
	return b.BatchType, b.Metadata.Hash()
}
