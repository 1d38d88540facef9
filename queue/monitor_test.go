package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/queue"
	"github.com/noteforge/beatqueue/store"
	"github.com/uptrace/bun"
)

// backdateStartedAt pushes every processing batch's started_at and
// claim_expires_at back by d, simulating a worker that has been
// running (or has crashed) for that long — the monitor's stalled
// count and maintenance's reset_expired both key off these columns.
func backdateStartedAt(ctx context.Context, db *bun.DB, d time.Duration) {
	cutoff := time.Now().Add(-d)
	db.NewRaw(
		"UPDATE batches SET started_at = ?, claim_expires_at = ? WHERE status = 'processing'",
		cutoff, cutoff,
	).Exec(ctx)
}

// S6: 7 stalled batches, everything else clean. Monitor raises one
// critical alert and auto-remediates, leaving zero stalled batches.
func TestMonitorRaisesCriticalAndAutoRemediates(t *testing.T) {
	db := newTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		s.Push(ctx, batch.New("track_page", batch.Metadata{"n": i}), 0)
	}
	claimed, err := s.Claim(ctx, "worker-1", 7)
	if err != nil || len(claimed) != 7 {
		t.Fatalf("setup: expected to claim 7, got %d (%v)", len(claimed), err)
	}
	backdateStartedAt(ctx, db, 45*time.Minute)

	mon := queue.NewMonitor(s, queue.NewLogSink(testLogger()), testLogger())

	report, err := mon.Check(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Metrics.StalledBatches != 7 {
		t.Fatalf("expected 7 stalled batches, got %d", report.Metrics.StalledBatches)
	}

	hasCritical := false
	for _, a := range report.Alerts {
		if a.Level == queue.LevelCritical {
			hasCritical = true
		}
	}
	if !hasCritical {
		t.Fatal("expected a critical alert when stalled_batches exceeds threshold")
	}

	found := false
	for _, action := range report.Actions {
		if action == "reset_stalled_batches" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected reset_stalled_batches action to be recorded")
	}

	stalled, err := s.CountStalled(ctx, time.Now().Add(-30*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if stalled != 0 {
		t.Fatalf("expected 0 stalled batches after auto-remediation, got %d", stalled)
	}
}
