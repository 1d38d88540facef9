package queue

import "time"

// DefaultRetryLimit is the retry ceiling applied to any batch_type not
// named in a RetryPolicy's overrides.
const DefaultRetryLimit = 3

// RetryPolicy computes the per-batch_type retry ceiling and the
// geometric backoff delay applied between attempts.
//
// Backoff follows backoff_ms = 500 * 2^(next-1): 500, 1000, 2000, 4000,
// 8000ms for attempts 1..5. Unlike the teacher's BackoffConfig, this
// formula is fixed (no jitter, no configurable multiplier) — it is the
// literal sequence this system's retries must produce, not a tunable
// policy.
type RetryPolicy struct {
	// Limits overrides DefaultRetryLimit per batch_type.
	Limits map[string]int
}

// NewRetryPolicy returns the default policy: discover-artists=3,
// album_page=5, track_page=5, producer_discovery=3, everything else=3.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		Limits: map[string]int{
			"discover-artists":   3,
			"album_page":         5,
			"track_page":         5,
			"producer_discovery": 3,
		},
	}
}

// Limit returns the retry ceiling for batchType.
func (p *RetryPolicy) Limit(batchType string) int {
	if p.Limits != nil {
		if lim, ok := p.Limits[batchType]; ok {
			return lim
		}
	}
	return DefaultRetryLimit
}

// Exhausted reports whether nextRetryCount has reached or passed the
// ceiling for batchType — the point at which a batch is dead-lettered
// instead of retried.
func (p *RetryPolicy) Exhausted(batchType string, nextRetryCount int) bool {
	return nextRetryCount >= p.Limit(batchType)
}

// Backoff returns the delay to wait before attempt n (1-indexed) becomes
// visible again: 500ms * 2^(n-1).
func Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	ms := 500 * (1 << uint(n-1))
	return time.Duration(ms) * time.Millisecond
}
