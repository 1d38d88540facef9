package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/handlers/spotify"
	"github.com/noteforge/beatqueue/queue"
)

// AlbumPage is the album_page handler (aliased as album_discovery): it
// pages through one artist's albums and emits a track_page child per
// album page.
type AlbumPage struct {
	spotify *spotify.Client
	store   queue.Store
	gate    *queue.Gate
	log     *slog.Logger
}

func NewAlbumPage(sp *spotify.Client, store queue.Store, gate *queue.Gate, log *slog.Logger) *AlbumPage {
	return &AlbumPage{spotify: sp, store: store, gate: gate, log: log}
}

func (h *AlbumPage) Handle(ctx context.Context, b *batch.Batch) (queue.Result, error) {
	artistID, _ := b.Metadata["artist_id"].(string)
	if artistID == "" {
		return queue.Result{}, fmt.Errorf("album_page: missing artist_id")
	}
	offset := metadataInt(b.Metadata, "offset", 0)
	limit := metadataInt(b.Metadata, "limit", 50)

	if ok, err := h.gate.Check(ctx, "spotify", "artist-albums"); err != nil || !ok {
		return queue.Result{}, err
	}
	albums, hasMore, info, err := h.spotify.ArtistAlbums(ctx, artistID, offset, limit)
	if err != nil {
		return queue.Result{}, err
	}
	h.gate.Update(ctx, "spotify", "artist-albums", 0, 0, time.Time{}, info.LastResponse)

	for _, album := range albums {
		child := batch.New("track_page", batch.Metadata{
			"album_id": album.Id,
			"offset":   float64(0),
			"limit":    float64(50),
		})
		if _, err := h.store.Push(ctx, child, 0); err != nil && !errors.Is(err, queue.ErrAlreadyActive) {
			h.log.Error("cannot push track_page batch", "album_id", album.Id, "err", err)
		}
	}

	if hasMore {
		next := batch.New("album_page", batch.Metadata{
			"artist_id": artistID,
			"offset":    float64(offset + limit),
			"limit":     float64(limit),
		})
		if _, err := h.store.Push(ctx, next, 0); err != nil && !errors.Is(err, queue.ErrAlreadyActive) {
			h.log.Error("cannot push next album_page batch", "artist_id", artistID, "err", err)
		}
	}

	return queue.Result{ItemsProcessed: len(albums)}, nil
}

func metadataInt(m batch.Metadata, key string, def int) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}
