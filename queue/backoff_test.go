package queue_test

import (
	"testing"
	"time"

	"github.com/noteforge/beatqueue/queue"
)

func TestBackoffSequence(t *testing.T) {
	want := []time.Duration{
		500 * time.Millisecond,
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
	}
	for i, w := range want {
		got := queue.Backoff(i + 1)
		if got != w {
			t.Fatalf("attempt %d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestRetryPolicyDefaults(t *testing.T) {
	p := queue.NewRetryPolicy()
	cases := map[string]int{
		"discover-artists":   3,
		"album_page":         5,
		"track_page":         5,
		"producer_discovery": 3,
		"unknown_type":       queue.DefaultRetryLimit,
	}
	for batchType, want := range cases {
		if got := p.Limit(batchType); got != want {
			t.Fatalf("%s: got limit %d, want %d", batchType, got, want)
		}
	}
}

func TestRetryPolicyExhausted(t *testing.T) {
	p := queue.NewRetryPolicy()
	if p.Exhausted("album_page", 4) {
		t.Fatal("expected retry_count 4 (next) to still be within album_page's limit of 5")
	}
	if !p.Exhausted("album_page", 5) {
		t.Fatal("expected retry_count 5 (next) to exhaust album_page's limit of 5")
	}
}
