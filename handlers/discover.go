// Package handlers wires the concrete batch_type handlers (C8) into a
// queue.Registry: discover-artists (seed), album_page (emits
// track_page children), track_page (emits producer_discovery
// children), and producer_discovery (Genius + Discogs enrichment,
// terminal). Handlers only ever write new batches through Store.Push
// and never touch batch status — the dispatcher owns that.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/handlers/spotify"
	"github.com/noteforge/beatqueue/queue"
)

// seedGenreCount is how many genre seeds the no-query discovery path
// uses, per §6.
const seedGenreCount = 5

// genreSeedDelay is the pause between per-seed search calls in the
// no-query discovery path, per §6.
const genreSeedDelay = 250 * time.Millisecond

// DiscoverArtists is the discover-artists handler (C8 seed). With a
// "query" metadata key it searches directly; without one, it lists
// genre seeds, takes the first five, and issues one search per seed.
type DiscoverArtists struct {
	spotify *spotify.Client
	store   queue.Store
	gate    *queue.Gate
	log     *slog.Logger
}

func NewDiscoverArtists(sp *spotify.Client, store queue.Store, gate *queue.Gate, log *slog.Logger) *DiscoverArtists {
	return &DiscoverArtists{spotify: sp, store: store, gate: gate, log: log}
}

func (h *DiscoverArtists) Handle(ctx context.Context, b *batch.Batch) (queue.Result, error) {
	limit := 20
	if l, ok := b.Metadata["limit"].(string); ok {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	if query, ok := b.Metadata["query"].(string); ok && query != "" {
		return h.searchOne(ctx, query, limit)
	}
	return h.searchByGenreSeeds(ctx, limit)
}

func (h *DiscoverArtists) searchOne(ctx context.Context, query string, limit int) (queue.Result, error) {
	if ok, err := h.gate.Check(ctx, "spotify", "search"); err != nil || !ok {
		return queue.Result{}, err
	}
	artists, info, err := h.spotify.SearchArtists(ctx, query, limit)
	if err != nil {
		return queue.Result{}, err
	}
	h.gate.Update(ctx, "spotify", "search", 0, 0, time.Time{}, info.LastResponse)
	return h.emitAlbumDiscovery(ctx, artists)
}

func (h *DiscoverArtists) searchByGenreSeeds(ctx context.Context, limit int) (queue.Result, error) {
	if ok, err := h.gate.Check(ctx, "spotify", "genre-seeds"); err != nil || !ok {
		return queue.Result{}, err
	}
	genres, info, err := h.spotify.GenreSeeds(ctx)
	if err != nil {
		return queue.Result{}, err
	}
	h.gate.Update(ctx, "spotify", "genre-seeds", 0, 0, time.Time{}, info.LastResponse)

	if len(genres) > seedGenreCount {
		genres = genres[:seedGenreCount]
	}

	var allArtists []spotify.Artist
	for i, genre := range genres {
		if i > 0 {
			select {
			case <-time.After(genreSeedDelay):
			case <-ctx.Done():
				return queue.Result{}, ctx.Err()
			}
		}
		if ok, err := h.gate.Check(ctx, "spotify", "search"); err != nil || !ok {
			return queue.Result{}, err
		}
		artists, info, err := h.spotify.SearchArtistsByGenre(ctx, genre, 5)
		if err != nil {
			h.log.Error("genre seed search failed", "genre", genre, "err", err)
			continue
		}
		h.gate.Update(ctx, "spotify", "search", 0, 0, time.Time{}, info.LastResponse)
		allArtists = append(allArtists, artists...)
	}
	return h.emitAlbumDiscovery(ctx, allArtists)
}

func (h *DiscoverArtists) emitAlbumDiscovery(ctx context.Context, artists []spotify.Artist) (queue.Result, error) {
	for _, artist := range artists {
		child := batch.New("album_page", batch.Metadata{
			"artist_id": artist.Id,
			"offset":    float64(0),
			"limit":     float64(50),
		})
		if _, err := h.store.Push(ctx, child, 0); err != nil && !errors.Is(err, queue.ErrAlreadyActive) {
			h.log.Error("cannot push album_page batch", "artist_id", artist.Id, "err", err)
		}
	}
	return queue.Result{ItemsProcessed: len(artists)}, nil
}
