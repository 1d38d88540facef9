package batch

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Metadata is the opaque, handler-specific payload carried by a Batch.
// Its schema varies by batch_type (a tagged union keyed by batch_type,
// in the terms of the design notes); the engine never interprets it,
// only serializes it to a canonical form for hashing and storage.
type Metadata map[string]any

// Hash returns the idempotency hash of the canonical serialization of m:
// keys sorted, no whitespace. Two Metadata values with the same keys and
// values hash identically regardless of map iteration order.
func (m Metadata) Hash() string {
	canonical, err := canonicalize(m)
	if err != nil {
		// Metadata is always produced by this process from JSON-safe
		// values (primitives, maps, slices); a marshal failure here
		// indicates a handler stored something non-serializable, which
		// is a programmer error, not a runtime condition to recover from.
		panic("batch: metadata not serializable: " + err.Error())
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func canonicalize(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// normalize walks v and copies every map[string]any and []any it
// reaches; json.Marshal sorts map keys at every nesting level, so the
// marshaled result is a deterministic byte sequence even for maps with
// interface{} values nested arbitrarily deep.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(val))
		for _, k := range keys {
			nv, err := normalize(val[k])
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			nv, err := normalize(item)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return val, nil
	}
}
