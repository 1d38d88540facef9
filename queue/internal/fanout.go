package internal

import (
	"context"
	"log/slog"
	"sync"
)

// FanoutHandler processes a single item dispatched by Fanout.
type FanoutHandler[T any] func(context.Context, T)

// Fanout runs handler over every item concurrently and blocks until all
// have settled — a single panicking or long-running item never cancels
// its siblings, and the caller never returns before every item has been
// attempted exactly once. Concurrency is bounded only by len(items); the
// caller is responsible for sizing items (see the dispatcher's
// claim(limit) call, which already bounds the batch to available
// capacity).
func Fanout[T any](ctx context.Context, log *slog.Logger, items []T, handler FanoutHandler[T]) {
	var wg sync.WaitGroup
	wg.Add(len(items))
	for _, item := range items {
		item := item
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Error("dispatch panic recovered", "err", r)
				}
			}()
			handler(ctx, item)
		}()
	}
	wg.Wait()
}
