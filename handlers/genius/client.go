// Package genius is a narrow client over the Genius API, used by the
// producer_discovery handler to look up song credits. Authentication is
// a static Bearer access token — Genius has no client-credentials flow.
package genius

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

const baseURL = "https://api.genius.com"

// Client is a Bearer-authenticated Genius API client.
type Client struct {
	http  *http.Client
	token string
}

// NewClient builds a Client authenticating with accessToken.
func NewClient(accessToken string) *Client {
	return &Client{http: http.DefaultClient, token: accessToken}
}

// RateLimitInfo carries the observed response status; Genius does not
// publish quota headers on the free tier this system targets.
type RateLimitInfo struct {
	LastResponse int
}

func (c *Client) do(ctx context.Context, path string, out any) (RateLimitInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return RateLimitInfo{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return RateLimitInfo{}, err
	}
	defer resp.Body.Close()

	info := RateLimitInfo{LastResponse: resp.StatusCode}
	if resp.StatusCode >= 400 {
		return info, fmt.Errorf("genius: %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return info, fmt.Errorf("genius: decode %s: %w", path, err)
		}
	}
	return info, nil
}

// SongHit is the subset of a Genius song search hit this system uses.
type SongHit struct {
	Id    int    `json:"id"`
	Title string `json:"title"`
}

type searchResponse struct {
	Response struct {
		Hits []struct {
			Result SongHit `json:"result"`
		} `json:"hits"`
	} `json:"response"`
}

// SearchSong looks up a track by title/artist query string.
func (c *Client) SearchSong(ctx context.Context, query string) ([]SongHit, RateLimitInfo, error) {
	path := "/search?q=" + url.QueryEscape(query)
	var resp searchResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return nil, info, err
	}
	hits := make([]SongHit, 0, len(resp.Response.Hits))
	for _, h := range resp.Response.Hits {
		hits = append(hits, h.Result)
	}
	return hits, info, nil
}

// SongCredits is the subset of producer-credit data extracted from a
// Genius song detail response. Genius's producer credits are modeled
// as "custom performances" tagged "Producer"; this client pulls out
// only the performer names the producer_discovery handler needs.
type SongCredits struct {
	Producers []string
}

type songResponse struct {
	Response struct {
		Song struct {
			CustomPerformances []struct {
				Label   string `json:"label"`
				Artists []struct {
					Name string `json:"name"`
				} `json:"artists"`
			} `json:"custom_performances"`
		} `json:"song"`
	} `json:"response"`
}

// SongDetail fetches producer credits for a song id.
func (c *Client) SongDetail(ctx context.Context, songID int) (SongCredits, RateLimitInfo, error) {
	path := fmt.Sprintf("/songs/%d", songID)
	var resp songResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return SongCredits{}, info, err
	}
	var credits SongCredits
	for _, perf := range resp.Response.Song.CustomPerformances {
		if perf.Label != "Producer" {
			continue
		}
		for _, a := range perf.Artists {
			credits.Producers = append(credits.Producers, a.Name)
		}
	}
	return credits, info, nil
}
