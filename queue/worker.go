package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/queue/internal"
)

// MaxConcurrentJobs bounds how many batches a single Dispatcher tick
// will have in flight at once.
const MaxConcurrentJobs = 3

// TickResult is the per-tick summary returned to the caller (and, via
// the HTTP surface, serialized as the worker's JSON response).
type TickResult struct {
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Dispatcher is the Worker (C4): it leases batches, runs their handler
// under the rate-limit gate, and applies the completion/retry/DLQ
// policy. A Dispatcher is stateless between ticks — there is no
// long-running loop here, unlike the teacher's continuous Worker; each
// external invocation (an HTTP POST, in this system) maps to exactly
// one Tick call.
type Dispatcher struct {
	store    Store
	registry *Registry
	retry    *RetryPolicy
	log      *slog.Logger

	workerID string

	// MaxJobs bounds concurrent dispatch within one tick. Defaults to
	// MaxConcurrentJobs; deployments may tune it before first use.
	MaxJobs int
}

// NewDispatcher constructs a Dispatcher. workerID identifies this
// dispatcher instance in ClaimedBy so that stranded leases can be
// attributed during diagnosis.
func NewDispatcher(store Store, registry *Registry, retry *RetryPolicy, log *slog.Logger, workerID string) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		retry:    retry,
		log:      log,
		workerID: workerID,
		MaxJobs:  MaxConcurrentJobs,
	}
}

// Tick runs one worker invocation end to end:
//
//  1. reads the current Processing count P; if P >= MaxJobs, emits
//     max_concurrent_jobs_reached and returns idle;
//  2. claims want = MaxJobs - P batches;
//  3. dispatches every claimed batch concurrently and awaits all
//     (all-settle — one failing sibling never cancels another);
//  4. returns the {claimed, completed, failed} summary.
//
// Reading P and then claiming want is not atomic (Open Question 2 in
// the design notes): under heavy concurrency across multiple
// Dispatcher instances, in-flight Processing rows may briefly exceed
// MaxJobs. This is an accepted best-effort throttle, not a hard limit.
func (d *Dispatcher) Tick(ctx context.Context) (*TickResult, error) {
	processing, err := d.store.CountProcessing(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if processing >= d.MaxJobs {
		d.log.Info("max_concurrent_jobs_reached", "processing", processing)
		return &TickResult{}, nil
	}

	want := d.MaxJobs - processing
	claimed, err := d.store.Claim(ctx, d.workerID, want)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(claimed) == 0 {
		return &TickResult{}, nil
	}

	result := &TickResult{Claimed: len(claimed)}
	var completed, failed atomic.Int64
	internal.Fanout(ctx, d.log, claimed, func(ctx context.Context, b *batch.Batch) {
		if d.dispatchOne(ctx, b) {
			completed.Add(1)
		} else {
			failed.Add(1)
		}
	})
	result.Completed = int(completed.Load())
	result.Failed = int(failed.Load())
	return result, nil
}

// dispatchOne resolves the handler for b, invokes it, and applies the
// completion/retry/DLQ policy. It reports whether the batch completed
// successfully.
//
// dispatchOne is called concurrently for sibling batches in the same
// tick but operates on a single batch's own goroutine — the all-settle
// barrier lives in Tick, not here.
func (d *Dispatcher) dispatchOne(ctx context.Context, b *batch.Batch) bool {
	start := time.Now()
	handler, ok := d.registry.Resolve(b.BatchType)
	if !ok {
		d.handleFailure(ctx, b, fmt.Errorf("no handler registered for batch_type %q", b.BatchType), false)
		return false
	}

	res, err := handler.Handle(ctx, b)
	if err != nil {
		d.handleFailure(ctx, b, err, res.Permanent)
		return false
	}

	itemsProcessed := res.ItemsProcessed
	if itemsProcessed == 0 {
		itemsProcessed = 1
	}
	if cerr := d.store.Complete(ctx, b.Id, itemsProcessed, res.ItemsFailed); cerr != nil {
		d.log.Error("cannot complete batch", "id", b.Id, "err", cerr)
		return false
	}
	d.log.Info("batch_completed", "id", b.Id, "batch_type", b.BatchType, "latency", time.Since(start))
	return true
}

// handleFailure applies the retry policy, or dead-letters the batch
// when retries are exhausted or the handler reported a permanent
// failure.
func (d *Dispatcher) handleFailure(ctx context.Context, b *batch.Batch, cause error, permanent bool) {
	next := b.RetryCount + 1
	if !permanent && !d.retry.Exhausted(b.BatchType, next) {
		backoff := Backoff(next)
		if err := d.store.Retry(ctx, b.Id, cause.Error(), backoff); err != nil {
			d.log.Error("cannot return batch to pending", "id", b.Id, "err", err)
		}
		return
	}
	d.deadLetter(ctx, b, cause)
}

func (d *Dispatcher) deadLetter(ctx context.Context, b *batch.Batch, cause error) {
	if err := d.store.Fail(ctx, b.Id, cause.Error()); err != nil {
		d.log.Error("cannot mark batch error", "id", b.Id, "err", err)
		return
	}
	item := &batch.DeadLetterItem{
		Id:              uuid.New(),
		ItemType:        b.BatchType,
		ErrorMessage:    cause.Error(),
		OriginalBatchId: b.Id,
		Metadata:        b.Metadata,
	}
	if err := d.store.InsertDLQ(ctx, item); err != nil {
		// The batch remains error without a DLQ sibling — logged only,
		// per the DLQ-internal error kind in the design notes.
		d.log.Error("cannot insert dead-letter item", "batch_id", b.Id, "err", err)
	}
}
