package queue

import (
	"context"

	"github.com/noteforge/beatqueue/batch"
)

// Result is what a Handler reports back for one batch.
type Result struct {
	ItemsProcessed int
	ItemsFailed    int

	// Permanent marks a failure as non-retryable even if the batch_type
	// still has retry budget left — the dispatcher dead-letters it
	// immediately instead of consulting RetryPolicy. Unused on success.
	Permanent bool
}

// Handler executes one batch kind. Handlers are opaque to the engine:
// they may spawn child batches by calling Store.Push themselves, but
// they never touch batch status — that remains the dispatcher's job.
// Handlers must be idempotent; the engine provides at-least-once
// delivery only.
type Handler interface {
	Handle(ctx context.Context, b *batch.Batch) (Result, error)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, b *batch.Batch) (Result, error)

func (f HandlerFunc) Handle(ctx context.Context, b *batch.Batch) (Result, error) {
	return f(ctx, b)
}

// Registry maps batch_type to Handler. Aliases let multiple batch_type
// strings resolve to the same underlying handler (album_discovery and
// album_page both resolve to the album-page handler, for instance).
// A batch_type with no registration and no alias resolves to a handler
// registered under that exact name, if any — adding a handler is purely
// a registry change, never a dispatcher change.
type Registry struct {
	handlers map[string]Handler
	aliases  map[string]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		aliases:  make(map[string]string),
	}
}

// Register binds name to h.
func (r *Registry) Register(name string, h Handler) {
	r.handlers[name] = h
}

// Alias makes alias resolve to whatever canonical is currently (or
// later) bound to.
func (r *Registry) Alias(alias, canonical string) {
	r.aliases[alias] = canonical
}

// Resolve returns the Handler bound to batchType, following at most one
// alias hop, and reports whether a handler was found.
func (r *Registry) Resolve(batchType string) (Handler, bool) {
	name := batchType
	if canonical, ok := r.aliases[batchType]; ok {
		name = canonical
	}
	h, ok := r.handlers[name]
	return h, ok
}
