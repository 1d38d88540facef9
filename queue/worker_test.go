package queue_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/queue"
	"github.com/noteforge/beatqueue/store"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := store.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// S1: a single pending batch, handler always succeeds.
func TestTickCompletesSucceedingBatch(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	s.Push(ctx, batch.New("album_page", batch.Metadata{"artist_id": "A", "offset": 0, "limit": 50}), 0)

	registry := queue.NewRegistry()
	registry.Register("album_page", queue.HandlerFunc(func(ctx context.Context, b *batch.Batch) (queue.Result, error) {
		return queue.Result{ItemsProcessed: 1}, nil
	}))

	d := queue.NewDispatcher(s, registry, queue.NewRetryPolicy(), testLogger(), "worker-1")
	result, err := d.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Claimed != 1 || result.Completed != 1 || result.Failed != 0 {
		t.Fatalf("unexpected tick result: %+v", result)
	}
}

// S2: a handler that always fails; drive 6 ticks and assert DLQ at tick 5.
func TestTickExhaustsRetriesAndDeadLetters(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	s.Push(ctx, batch.New("album_page", batch.Metadata{"artist_id": "A", "offset": 0, "limit": 5}), 0)

	registry := queue.NewRegistry()
	registry.Register("album_page", queue.HandlerFunc(func(ctx context.Context, b *batch.Batch) (queue.Result, error) {
		return queue.Result{}, errors.New("upstream 500")
	}))
	retry := queue.NewRetryPolicy()
	retry.Limits["album_page"] = 5

	d := queue.NewDispatcher(s, registry, retry, testLogger(), "worker-1")

	for i := 1; i <= 6; i++ {
		result, err := d.Tick(ctx)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		var retryCount int
		var status string
		if err := db.NewRaw("SELECT retry_count, status FROM batches").Scan(ctx, &retryCount, &status); err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		switch {
		case i < 5:
			if retryCount != i || status != "pending" {
				t.Fatalf("tick %d: got retry_count=%d status=%s, want retry_count=%d status=pending", i, retryCount, status, i)
			}
		case i == 5:
			if retryCount != 5 || status != "error" {
				t.Fatalf("tick 5: got retry_count=%d status=%s, want retry_count=5 status=error", retryCount, status)
			}
		default:
			if result.Claimed != 0 {
				t.Fatalf("tick 6: expected nothing claimable, claimed %d", result.Claimed)
			}
		}
		// Retried batches are not visible again until their backoff
		// elapses; force visibility so the test can drive ticks
		// sequentially without sleeping for real backoff windows.
		forceVisible(ctx, db)
	}

	dlqCount, err := s.CountDeadLetterSince(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if dlqCount != 1 {
		t.Fatalf("expected 1 dead-lettered item after exhausting retries, got %d", dlqCount)
	}

	var itemType string
	if err := db.NewRaw("SELECT item_type FROM dead_letter_items").Scan(ctx, &itemType); err != nil {
		t.Fatal(err)
	}
	if itemType != "album_page" {
		t.Fatalf("expected dead-lettered item_type album_page, got %s", itemType)
	}
}

// forceVisible clears next_visible_at backoff so sequential test ticks
// don't have to sleep out real backoff windows.
func forceVisible(ctx context.Context, db *bun.DB) {
	db.NewRaw("UPDATE batches SET next_visible_at = ?", time.Now().Add(-time.Second)).Exec(ctx)
}

// S3: 10 pending batches, MAX_CONCURRENT_JOBS=3 claims only 3.
func TestTickRespectsMaxConcurrentJobs(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		s.Push(ctx, batch.New("track_page", batch.Metadata{"n": i}), 0)
	}

	registry := queue.NewRegistry()
	registry.Register("track_page", queue.HandlerFunc(func(ctx context.Context, b *batch.Batch) (queue.Result, error) {
		return queue.Result{ItemsProcessed: 1}, nil
	}))

	d := queue.NewDispatcher(s, registry, queue.NewRetryPolicy(), testLogger(), "worker-1")
	result, err := d.Tick(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if result.Claimed != 3 {
		t.Fatalf("expected claim to be capped at 3, got %d", result.Claimed)
	}
}
