package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/handlers/discogs"
	"github.com/noteforge/beatqueue/handlers/genius"
	"github.com/noteforge/beatqueue/queue"
)

// ProducerDiscovery is the producer_discovery handler (C8 terminal): it
// enriches a track with producer credits from Genius and Discogs,
// converging both sources through Store.NormalizeProducerName so the
// same producer found via either upstream is counted once.
type ProducerDiscovery struct {
	genius  *genius.Client
	discogs *discogs.Client
	store   queue.Store
	gate    *queue.Gate
	log     *slog.Logger
}

func NewProducerDiscovery(g *genius.Client, d *discogs.Client, store queue.Store, gate *queue.Gate, log *slog.Logger) *ProducerDiscovery {
	return &ProducerDiscovery{genius: g, discogs: d, store: store, gate: gate, log: log}
}

func (h *ProducerDiscovery) Handle(ctx context.Context, b *batch.Batch) (queue.Result, error) {
	trackName, _ := b.Metadata["track_name"].(string)
	if trackName == "" {
		return queue.Result{}, fmt.Errorf("producer_discovery: missing track_name")
	}

	producers := make(map[string]struct{})

	if ok, err := h.gate.Check(ctx, "genius", "search"); err != nil || !ok {
		return queue.Result{}, err
	}
	hits, info, err := h.genius.SearchSong(ctx, trackName)
	if err != nil {
		h.log.Warn("genius search failed", "track", trackName, "err", err)
	} else {
		h.gate.Update(ctx, "genius", "search", 0, 0, time.Time{}, info.LastResponse)
		if len(hits) > 0 {
			if ok, err := h.gate.Check(ctx, "genius", "song"); err == nil && ok {
				credits, info, err := h.genius.SongDetail(ctx, hits[0].Id)
				if err == nil {
					h.gate.Update(ctx, "genius", "song", 0, 0, time.Time{}, info.LastResponse)
					for _, p := range credits.Producers {
						producers[h.store.NormalizeProducerName(p)] = struct{}{}
					}
				}
			}
		}
	}

	if releaseID, ok := b.Metadata["discogs_release_id"].(string); ok && releaseID != "" {
		if ok, err := h.gate.Check(ctx, "discogs", "release"); err == nil && ok {
			credits, info, err := h.discogs.Release(ctx, releaseID)
			if err == nil {
				h.gate.Update(ctx, "discogs", "release", info.Remaining, info.Limit, time.Time{}, info.LastResponse)
				for _, p := range credits.Producers {
					producers[h.store.NormalizeProducerName(p)] = struct{}{}
				}
			}
		}
	}

	if len(producers) == 0 {
		return queue.Result{ItemsProcessed: 1, ItemsFailed: 0}, nil
	}
	return queue.Result{ItemsProcessed: len(producers)}, nil
}
