package handlers_test

import (
	"testing"

	"github.com/noteforge/beatqueue/handlers"
	"github.com/noteforge/beatqueue/handlers/discogs"
	"github.com/noteforge/beatqueue/handlers/genius"
	"github.com/noteforge/beatqueue/handlers/spotify"
)

func TestRegistryResolvesAliases(t *testing.T) {
	clients := handlers.Clients{
		Spotify: spotify.NewClient("id", "secret"),
		Genius:  genius.NewClient("token"),
		Discogs: discogs.NewClient("key", "secret"),
	}
	r := handlers.NewRegistry(clients, nil, nil, nil)

	cases := []string{"discover-artists", "album_page", "album_discovery", "track_page", "track_discovery", "producer_discovery"}
	for _, name := range cases {
		if _, ok := r.Resolve(name); !ok {
			t.Fatalf("expected %q to resolve to a handler", name)
		}
	}

	h1, _ := r.Resolve("album_page")
	h2, _ := r.Resolve("album_discovery")
	if _, ok := h1.(*handlers.AlbumPage); !ok {
		t.Fatal("expected album_page to resolve to *AlbumPage")
	}
	if h2 != h1 {
		t.Fatal("expected album_discovery alias to resolve to the same handler instance")
	}

	if _, ok := r.Resolve("unknown_type"); ok {
		t.Fatal("expected an unregistered batch_type to not resolve")
	}
}
