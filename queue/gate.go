package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/noteforge/beatqueue/batch"
)

// Gate is the per (api_name, endpoint) rate-limit gate (C2). It is
// cooperative, not a hard lock: two callers may both observe
// remaining=1 and both proceed. This is tolerated — upstream APIs
// themselves answer with 429 on true exhaustion, and the gate's job is
// only to avoid the common case of hammering a known-exhausted
// endpoint (see design notes).
type Gate struct {
	store Store
	log   *slog.Logger

	// MaxSleep caps how long Check will block on a future reset_at —
	// the gate must never sleep longer than one lease duration, or a
	// handler blocked inside Check would outlive its own claim and get
	// reclaimed out from under it by reset_expired.
	MaxSleep time.Duration
}

// NewGate constructs a Gate backed by store, with MaxSleep set to
// DefaultLeaseDuration.
func NewGate(store Store, log *slog.Logger) *Gate {
	return &Gate{store: store, log: log, MaxSleep: DefaultLeaseDuration}
}

// Check consults the tracked rate-limit state for (apiName, endpoint).
// If exhausted, it sleeps until ResetAt (capped at MaxSleep) or until
// ctx is canceled, then returns. An untracked pair, or one with budget
// remaining, returns immediately. Check returns true unless the store
// read fails or ctx is canceled (both return false with the error) —
// the gate never permanently refuses a call, only delays it, per §4.2.
func (g *Gate) Check(ctx context.Context, apiName, endpoint string) (bool, error) {
	rl, err := g.store.RateLimit(ctx, apiName, endpoint)
	if err != nil {
		return false, err
	}
	if rl == nil {
		return true, nil
	}
	now := time.Now()
	if !rl.Exhausted(now) {
		return true, nil
	}

	wait := rl.ResetAt.Sub(now)
	if wait > g.MaxSleep {
		wait = g.MaxSleep
	}
	g.log.Warn("rate limit exhausted, waiting", "api", apiName, "endpoint", endpoint, "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Update records the rate-limit state observed from an outbound
// response's headers.
func (g *Gate) Update(ctx context.Context, apiName, endpoint string, remaining, limit int, resetAt time.Time, lastResponse int) error {
	return g.store.TrackRateLimit(ctx, &batch.RateLimit{
		ApiName:           apiName,
		Endpoint:          endpoint,
		RequestsRemaining: remaining,
		RequestsLimit:     limit,
		ResetAt:           resetAt,
		LastResponse:      lastResponse,
		UpdatedAt:         time.Now(),
	})
}
