package store_test

import (
	"context"
	"database/sql"
	"errors"
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
	sqlDB.SetMaxOpenConns(1) // important for sqlite
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	ctx := context.Background()
	if err := store.InitDB(ctx, db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestPushClaimComplete(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	b := batch.New("album_page", batch.Metadata{"album_id": "abc"})
	pushed, err := s.Push(ctx, b, 0)
	if err != nil {
		t.Fatal(err)
	}

	claimed, err := s.Claim(ctx, "worker-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed batch, got %d", len(claimed))
	}
	if claimed[0].Id != pushed.Id {
		t.Fatal("claimed the wrong batch")
	}
	if claimed[0].Status != batch.Processing {
		t.Fatalf("expected Processing, got %v", claimed[0].Status)
	}

	if err := s.Complete(ctx, claimed[0].Id, 10, 0); err != nil {
		t.Fatal(err)
	}
}

func TestPushRejectsDuplicateActive(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	md := batch.Metadata{"album_id": "dup"}
	if _, err := s.Push(ctx, batch.New("album_page", md), 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Push(ctx, batch.New("album_page", md), 0); !errors.Is(err, queue.ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
}

func TestRetryIncrementsAndDelays(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	b, _ := s.Push(ctx, batch.New("track_page", batch.Metadata{"id": 1}), 0)
	claimed, _ := s.Claim(ctx, "w1", 1)
	_ = b

	if err := s.Retry(ctx, claimed[0].Id, "upstream 500", 2*time.Second); err != nil {
		t.Fatal(err)
	}

	again, err := s.Claim(ctx, "w1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 0 {
		t.Fatal("expected retried batch to not be visible before its backoff elapses")
	}

	var retryCount int
	if err := db.NewRaw("SELECT retry_count FROM batches").Scan(ctx, &retryCount); err != nil {
		t.Fatal(err)
	}
	if retryCount != 1 {
		t.Fatalf("expected retry to increment retry_count to 1, got %d", retryCount)
	}
}

func TestResetExpiredReclaimsStaleLease(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	s.Push(ctx, batch.New("discover-artists", batch.Metadata{"seed": "jazz"}), 0)
	if _, err := s.Claim(ctx, "w1", 1); err != nil {
		t.Fatal(err)
	}

	// A negative expiry pushes the reclamation cutoff past the freshly
	// granted 5-minute lease, so the row is immediately reclaimable.
	reset, err := s.ResetExpired(ctx, -31)
	if err != nil {
		t.Fatal(err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}

	n, err := s.CountProcessing(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("expected 0 processing after reset, got %d", n)
	}
}

func TestDLQInsertAndRequeue(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	item := &batch.DeadLetterItem{
		ItemType: "producer_discovery",
		Metadata: batch.Metadata{"producer": "Rick Rubin"},
	}
	if err := s.InsertDLQ(ctx, item); err != nil {
		t.Fatal(err)
	}

	requeued, err := s.RequeueDLQ(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued, got %d", requeued)
	}

	claimed, err := s.Claim(ctx, "w1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(claimed) != 1 || claimed[0].BatchType != "producer_discovery" {
		t.Fatal("expected the requeued batch to be claimable")
	}
	if claimed[0].RetryCount != 1 {
		t.Fatalf("expected requeued batch to carry retry_count 1, got %d", claimed[0].RetryCount)
	}
}

func TestNormalizeProducerNameConverges(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)

	a := s.NormalizeProducerName("Rick Rubin")
	b := s.NormalizeProducerName("  RICK   rubin, ")
	if a != b {
		t.Fatalf("expected normalized names to converge, got %q vs %q", a, b)
	}
}

func TestRateLimitTrackAndRead(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	rl := &batch.RateLimit{
		ApiName:           "spotify",
		Endpoint:          "albums",
		RequestsRemaining: 5,
		RequestsLimit:     100,
		ResetAt:           time.Now().Add(time.Minute),
	}
	if err := s.TrackRateLimit(ctx, rl); err != nil {
		t.Fatal(err)
	}

	got, err := s.RateLimit(ctx, "spotify", "albums")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.RequestsRemaining != 5 {
		t.Fatalf("expected tracked rate limit to round-trip, got %+v", got)
	}

	rl.RequestsRemaining = 1
	if err := s.TrackRateLimit(ctx, rl); err != nil {
		t.Fatal(err)
	}
	got, err = s.RateLimit(ctx, "spotify", "albums")
	if err != nil {
		t.Fatal(err)
	}
	if got.RequestsRemaining != 1 {
		t.Fatalf("expected upsert to update in place, got %d", got.RequestsRemaining)
	}
}
