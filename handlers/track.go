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

// TrackPage is the track_page handler (aliased as track_discovery): it
// pages through one album's tracks and emits a producer_discovery
// child per track.
type TrackPage struct {
	spotify *spotify.Client
	store   queue.Store
	gate    *queue.Gate
	log     *slog.Logger
}

func NewTrackPage(sp *spotify.Client, store queue.Store, gate *queue.Gate, log *slog.Logger) *TrackPage {
	return &TrackPage{spotify: sp, store: store, gate: gate, log: log}
}

func (h *TrackPage) Handle(ctx context.Context, b *batch.Batch) (queue.Result, error) {
	albumID, _ := b.Metadata["album_id"].(string)
	if albumID == "" {
		return queue.Result{}, fmt.Errorf("track_page: missing album_id")
	}
	offset := metadataInt(b.Metadata, "offset", 0)
	limit := metadataInt(b.Metadata, "limit", 50)

	if ok, err := h.gate.Check(ctx, "spotify", "album-tracks"); err != nil || !ok {
		return queue.Result{}, err
	}
	tracks, hasMore, info, err := h.spotify.AlbumTracks(ctx, albumID, offset, limit)
	if err != nil {
		return queue.Result{}, err
	}
	h.gate.Update(ctx, "spotify", "album-tracks", 0, 0, time.Time{}, info.LastResponse)

	for _, track := range tracks {
		child := batch.New("producer_discovery", batch.Metadata{
			"track_id":   track.Id,
			"track_name": track.Name,
			"album_id":   albumID,
		})
		if _, err := h.store.Push(ctx, child, 0); err != nil && !errors.Is(err, queue.ErrAlreadyActive) {
			h.log.Error("cannot push producer_discovery batch", "track_id", track.Id, "err", err)
		}
	}

	if hasMore {
		next := batch.New("track_page", batch.Metadata{
			"album_id": albumID,
			"offset":   float64(offset + limit),
			"limit":    float64(limit),
		})
		if _, err := h.store.Push(ctx, next, 0); err != nil && !errors.Is(err, queue.ErrAlreadyActive) {
			h.log.Error("cannot push next track_page batch", "album_id", albumID, "err", err)
		}
	}

	return queue.Result{ItemsProcessed: len(tracks)}, nil
}
