package batch_test

import (
	"testing"

	"github.com/noteforge/beatqueue/batch"
)

func TestMetadataHashStableAcrossKeyOrder(t *testing.T) {
	a := batch.Metadata{"artist_id": "A", "offset": float64(0), "limit": float64(50)}
	b := batch.Metadata{"limit": float64(50), "artist_id": "A", "offset": float64(0)}

	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal hashes, got %s vs %s", a.Hash(), b.Hash())
	}
}

func TestMetadataHashDiffersOnValue(t *testing.T) {
	a := batch.Metadata{"artist_id": "A"}
	b := batch.Metadata{"artist_id": "B"}

	if a.Hash() == b.Hash() {
		t.Fatal("expected different hashes for different values")
	}
}

func TestMetadataHashNested(t *testing.T) {
	a := batch.Metadata{"nested": map[string]any{"x": float64(1), "y": float64(2)}}
	b := batch.Metadata{"nested": map[string]any{"y": float64(2), "x": float64(1)}}

	if a.Hash() != b.Hash() {
		t.Fatal("expected equal hashes for nested maps with different key order")
	}
}
