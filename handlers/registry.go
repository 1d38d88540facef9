package handlers

import (
	"log/slog"

	"github.com/noteforge/beatqueue/handlers/discogs"
	"github.com/noteforge/beatqueue/handlers/genius"
	"github.com/noteforge/beatqueue/handlers/spotify"
	"github.com/noteforge/beatqueue/queue"
)

// Clients bundles the upstream API clients the handler set depends on.
type Clients struct {
	Spotify *spotify.Client
	Genius  *genius.Client
	Discogs *discogs.Client
}

// NewRegistry builds the fully-wired handler registry for C8: the four
// concrete handlers plus their discovery/alias names.
func NewRegistry(clients Clients, store queue.Store, gate *queue.Gate, log *slog.Logger) *queue.Registry {
	r := queue.NewRegistry()

	r.Register("discover-artists", NewDiscoverArtists(clients.Spotify, store, gate, log))

	r.Register("album_page", NewAlbumPage(clients.Spotify, store, gate, log))
	r.Alias("album_discovery", "album_page")

	r.Register("track_page", NewTrackPage(clients.Spotify, store, gate, log))
	r.Alias("track_discovery", "track_page")

	r.Register("producer_discovery", NewProducerDiscovery(clients.Genius, clients.Discogs, store, gate, log))

	return r
}
