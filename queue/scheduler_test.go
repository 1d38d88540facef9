package queue_test

import (
	"testing"

	"github.com/noteforge/beatqueue/queue"
)

func TestMatchesMinuteEveryMinute(t *testing.T) {
	for m := 0; m < 60; m++ {
		if !queue.MatchesMinute("* * * * *", m) {
			t.Fatalf("expected * * * * * to match minute %d", m)
		}
	}
}

func TestMatchesMinuteEveryTwo(t *testing.T) {
	for m := 0; m < 60; m++ {
		want := m%2 == 0
		if got := queue.MatchesMinute("*/2 * * * *", m); got != want {
			t.Fatalf("minute %d: got %v, want %v", m, got, want)
		}
	}
}

func TestMatchesMinuteHourly(t *testing.T) {
	if !queue.MatchesMinute("0 * * * *", 0) {
		t.Fatal("expected 0 * * * * to match minute 0")
	}
	for _, m := range []int{1, 15, 30, 59} {
		if queue.MatchesMinute("0 * * * *", m) {
			t.Fatalf("expected 0 * * * * to not match minute %d", m)
		}
	}
}

func TestMatchesMinuteEvery15(t *testing.T) {
	fires := map[int]bool{0: true, 15: true, 30: true, 45: true}
	for m := 0; m < 60; m++ {
		if got := queue.MatchesMinute("*/15 * * * *", m); got != fires[m] {
			t.Fatalf("minute %d: got %v, want %v", m, got, fires[m])
		}
	}
}

func TestMatchesMinuteUnrecognizedPatternNeverFires(t *testing.T) {
	for m := 0; m < 60; m++ {
		if queue.MatchesMinute("xyz", m) {
			t.Fatalf("expected xyz to never fire, fired at minute %d", m)
		}
	}
}
