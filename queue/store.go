package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/noteforge/beatqueue/batch"
)

// DefaultLeaseDuration is the visibility timeout assigned by claim.
const DefaultLeaseDuration = 5 * time.Minute

// DefaultExpiryMinutes is the default cushion reset_expired waits past
// a lease's ClaimExpiresAt before reclaiming it — it exceeds
// DefaultLeaseDuration deliberately, giving a crashed worker's lease
// headroom before another worker can reclaim the row.
const DefaultExpiryMinutes = 30

// QueueDepth is one (batch_type, status) bucket returned by
// QueueDepths, plus the count of that bucket's rows that have been
// pending for more than an hour (a staleness signal independent of
// lease expiry).
type QueueDepth struct {
	BatchType     string
	Status        batch.Status
	Count         int
	PendingOver1h int
}

// Store is the durable, transactional home for batches, dead-letter
// items, and rate-limit counters. Every mutating primitive here must be
// atomic under concurrent callers — for Claim, the canonical
// implementation (store/) uses a single UPDATE ... WHERE id IN
// (subquery ... FOR UPDATE SKIP LOCKED) RETURNING statement, the same
// technique the teacher's sql.Puller uses for Pull.
type Store interface {
	// Push durably inserts a new pending batch. It returns
	// ErrAlreadyActive if an active row already shares the batch's
	// idempotency key.
	Push(ctx context.Context, b *batch.Batch, delay time.Duration) (*batch.Batch, error)

	// Claim leases up to limit pending batches whose NextVisibleAt has
	// passed atomically, ordered (retry_count ASC, created_at ASC), and
	// transitions them to Processing. Processing rows with an expired
	// lease are not claimed here; ResetExpired returns them to Pending.
	Claim(ctx context.Context, workerID string, limit int) ([]*batch.Batch, error)

	// Complete transitions a Processing batch to Completed.
	Complete(ctx context.Context, id uuid.UUID, itemsProcessed, itemsFailed int) error

	// Retry transitions a Processing batch back to Pending, bumping
	// RetryCount and setting NextVisibleAt to now+backoff.
	Retry(ctx context.Context, id uuid.UUID, errMsg string, backoff time.Duration) error

	// Fail transitions a Processing batch to the terminal Error state,
	// bumping RetryCount so the row records the final, exhausted
	// attempt. The caller (the dispatcher) is responsible for inserting
	// the corresponding DeadLetterItem as a separate call.
	Fail(ctx context.Context, id uuid.UUID, errMsg string) error

	// CountProcessing returns the number of batches currently
	// Processing, used by the dispatcher to throttle to
	// MAX_CONCURRENT_JOBS before claiming more work.
	CountProcessing(ctx context.Context) (int, error)

	// ResetExpired reclaims leases whose ClaimExpiresAt is older than
	// expiryMinutes, returning them to Pending with RetryCount
	// preserved and an annotation appended to ErrorMessage. Returns the
	// number of rows reset.
	ResetExpired(ctx context.Context, expiryMinutes int) (int, error)

	// InsertDLQ parks a permanently failed batch in the dead-letter
	// area.
	InsertDLQ(ctx context.Context, item *batch.DeadLetterItem) error

	// RequeueDLQ selects up to limit DLQ items with RetryCount <
	// DLQMaxRequeues, in created_at order, inserts a fresh pending
	// batch for each carrying the same (ItemType, Metadata), and
	// increments the DLQ row's RetryCount. It does not delete the DLQ
	// row. Returns the number of items requeued.
	RequeueDLQ(ctx context.Context, limit int) (int, error)

	// Cleanup deletes Completed batches older than the given retention
	// window, in days.
	Cleanup(ctx context.Context, days int) (int, error)

	// QueueDepths returns the per-(batch_type, status) count breakdown.
	QueueDepths(ctx context.Context) ([]QueueDepth, error)

	// CountDeadLetterSince returns the number of DLQ rows created on or
	// after since.
	CountDeadLetterSince(ctx context.Context, since time.Time) (int, error)

	// CountErrorBatchesSince returns the number of batches with
	// status=error whose UpdatedAt is on or after since.
	CountErrorBatchesSince(ctx context.Context, since time.Time) (int, error)

	// CountStalled returns the number of Processing batches whose
	// StartedAt is older than startedBefore.
	CountStalled(ctx context.Context, startedBefore time.Time) (int, error)

	// CountExhaustedDLQ returns the number of DLQ rows whose RetryCount
	// has reached batch.DLQMaxRequeues — items requeue_dlq will never
	// select again. No automatic retention policy deletes them (see the
	// design notes' Open Question on DLQ growth); this count lets the
	// monitor surface it instead.
	CountExhaustedDLQ(ctx context.Context) (int, error)

	// TrackRateLimit records the rate-limit state observed from an
	// outbound API response.
	TrackRateLimit(ctx context.Context, r *batch.RateLimit) error

	// RateLimit returns the last known state for (apiName, endpoint),
	// or nil if the pair has never been tracked.
	RateLimit(ctx context.Context, apiName, endpoint string) (*batch.RateLimit, error)

	// AllRateLimits returns every tracked (api, endpoint) rate-limit
	// row, used by the monitor to build its rate_limits metric block.
	AllRateLimits(ctx context.Context) ([]*batch.RateLimit, error)

	// NormalizeProducerName canonicalizes a producer's display name
	// (case-folding, punctuation/whitespace collapse) so that the same
	// producer credited by different upstream sources (Genius credits
	// vs. Discogs credits) yields the same string.
	NormalizeProducerName(name string) string
}
