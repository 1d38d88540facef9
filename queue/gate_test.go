package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/queue"
	"github.com/noteforge/beatqueue/store"
)

func TestGateUntrackedPairPassesImmediately(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	g := queue.NewGate(s, testLogger())

	start := time.Now()
	ok, err := g.Check(context.Background(), "spotify", "search")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected untracked pair to pass")
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected untracked pair to pass without blocking")
	}
}

func TestGateWaitsUntilReset(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	resetAt := time.Now().Add(100 * time.Millisecond)
	err := s.TrackRateLimit(ctx, &batch.RateLimit{
		ApiName:           "discogs",
		Endpoint:          "release",
		RequestsRemaining: 0,
		RequestsLimit:     60,
		ResetAt:           resetAt,
	})
	if err != nil {
		t.Fatal(err)
	}

	g := queue.NewGate(s, testLogger())
	start := time.Now()
	ok, err := g.Check(ctx, "discogs", "release")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected gate to pass after the reset window")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatal("expected gate to block until reset_at")
	}
}

func TestGateRespectsCancellation(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	err := s.TrackRateLimit(ctx, &batch.RateLimit{
		ApiName:           "genius",
		Endpoint:          "search",
		RequestsRemaining: 0,
		RequestsLimit:     100,
		ResetAt:           time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	g := queue.NewGate(s, testLogger())
	ok, err := g.Check(cancelCtx, "genius", "search")
	if ok || err == nil {
		t.Fatalf("expected cancellation to abort the wait, got ok=%v err=%v", ok, err)
	}
}

func TestGateBudgetRemainingPassesImmediately(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	err := s.TrackRateLimit(ctx, &batch.RateLimit{
		ApiName:           "discogs",
		Endpoint:          "release",
		RequestsRemaining: 10,
		RequestsLimit:     60,
		ResetAt:           time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	g := queue.NewGate(s, testLogger())
	ok, err := g.Check(ctx, "discogs", "release")
	if err != nil || !ok {
		t.Fatalf("expected pass with budget remaining, got ok=%v err=%v", ok, err)
	}
}
