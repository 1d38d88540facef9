package batch

import "time"

// RateLimit is the last observed rate-limit state for one (api_name,
// endpoint) pair, updated from outbound response headers after every
// call.
type RateLimit struct {
	ApiName  string
	Endpoint string

	RequestsRemaining int
	RequestsLimit     int
	ResetAt           time.Time
	LastResponse      int

	UpdatedAt time.Time
}

// RemainingPercent returns RequestsRemaining as a percentage of
// RequestsLimit, or 100 if no limit has been observed yet (an untracked
// or never-called endpoint is not rate-limit-exhausted).
func (r *RateLimit) RemainingPercent() float64 {
	if r.RequestsLimit <= 0 {
		return 100
	}
	return float64(r.RequestsRemaining) / float64(r.RequestsLimit) * 100
}

// Exhausted reports whether this endpoint has no budget left and the
// reset window hasn't passed yet.
func (r *RateLimit) Exhausted(now time.Time) bool {
	return r.RequestsRemaining <= 0 && r.ResetAt.After(now)
}
