// Package spotify is a thin client over the Spotify Web API surface
// this system needs: OAuth2 client-credentials token acquisition,
// genre-seed listing, artist search, and paginated album/track
// listing. It is intentionally narrow — it is a handler collaborator,
// not a general Spotify SDK.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2/clientcredentials"
)

const baseURL = "https://api.spotify.com/v1"

// Client wraps an OAuth2 client-credentials-authenticated HTTP client.
type Client struct {
	http *http.Client
}

// NewClient builds a Client that acquires and refreshes tokens via the
// client-credentials grant against Spotify's token endpoint.
func NewClient(clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     "https://accounts.spotify.com/api/token",
	}
	return &Client{http: cfg.Client(context.Background())}
}

// RateLimitInfo is the subset of response headers the rate-limit gate
// needs. Spotify's Web API does not expose a remaining-requests header
// the way Discogs does; LastResponse carries the HTTP status so
// the gate can still distinguish a 429 from a clean response.
type RateLimitInfo struct {
	LastResponse int
}

func (c *Client) do(ctx context.Context, path string, out any) (RateLimitInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return RateLimitInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return RateLimitInfo{}, err
	}
	defer resp.Body.Close()

	info := RateLimitInfo{LastResponse: resp.StatusCode}
	if resp.StatusCode >= 400 {
		return info, fmt.Errorf("spotify: %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return info, fmt.Errorf("spotify: decode %s: %w", path, err)
		}
	}
	return info, nil
}

// Artist is the subset of a Spotify artist object this system tracks.
type Artist struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type searchArtistsResponse struct {
	Artists struct {
		Items []Artist `json:"items"`
	} `json:"artists"`
}

// SearchArtists issues /search?type=artist&q=<query>.
func (c *Client) SearchArtists(ctx context.Context, query string, limit int) ([]Artist, RateLimitInfo, error) {
	path := fmt.Sprintf("/search?type=artist&q=%s&limit=%d", queryEscape(query), limit)
	var resp searchArtistsResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return nil, info, err
	}
	return resp.Artists.Items, info, nil
}

// SearchArtistsByGenre issues /search?q=genre:"<genre>"&type=artist, the
// form used by the no-query discover-artists path (§6).
func (c *Client) SearchArtistsByGenre(ctx context.Context, genre string, limit int) ([]Artist, RateLimitInfo, error) {
	q := fmt.Sprintf(`genre:"%s"`, genre)
	path := fmt.Sprintf("/search?q=%s&type=artist&limit=%d", queryEscape(q), limit)
	var resp searchArtistsResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return nil, info, err
	}
	return resp.Artists.Items, info, nil
}

type genreSeedsResponse struct {
	Genres []string `json:"genres"`
}

// GenreSeeds lists the available recommendation genre seeds.
func (c *Client) GenreSeeds(ctx context.Context) ([]string, RateLimitInfo, error) {
	var resp genreSeedsResponse
	info, err := c.do(ctx, "/recommendations/available-genre-seeds", &resp)
	return resp.Genres, info, err
}

// Album is the subset of a Spotify album object this system tracks.
type Album struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type artistAlbumsResponse struct {
	Items []Album `json:"items"`
	Next  string  `json:"next"`
}

// ArtistAlbums pages through an artist's albums.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, offset, limit int) ([]Album, bool, RateLimitInfo, error) {
	path := fmt.Sprintf("/artists/%s/albums?offset=%d&limit=%d", artistID, offset, limit)
	var resp artistAlbumsResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return nil, false, info, err
	}
	return resp.Items, resp.Next != "", info, nil
}

// Track is the subset of a Spotify track object this system tracks.
type Track struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type albumTracksResponse struct {
	Items []Track `json:"items"`
	Next  string  `json:"next"`
}

// AlbumTracks pages through an album's tracks.
func (c *Client) AlbumTracks(ctx context.Context, albumID string, offset, limit int) ([]Track, bool, RateLimitInfo, error) {
	path := fmt.Sprintf("/albums/%s/tracks?offset=%d&limit=%d", albumID, offset, limit)
	var resp albumTracksResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return nil, false, info, err
	}
	return resp.Items, resp.Next != "", info, nil
}

func queryEscape(s string) string {
	return url.QueryEscape(s)
}
