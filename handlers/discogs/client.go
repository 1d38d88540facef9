// Package discogs is a narrow client over the Discogs API, used by the
// producer_discovery handler as a second enrichment source alongside
// Genius. Authentication is the Discogs key/secret scheme passed as
// query parameters (Discogs does not support a Bearer or OAuth2 token
// for this use case's read-only lookups).
package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const baseURL = "https://api.discogs.com"

// Client is a key/secret-authenticated Discogs API client.
type Client struct {
	http   *http.Client
	key    string
	secret string
}

// NewClient builds a Client authenticating with the given consumer
// key/secret pair.
func NewClient(key, secret string) *Client {
	return &Client{http: http.DefaultClient, key: key, secret: secret}
}

// RateLimitInfo carries the Discogs rate-limit headers, which Discogs
// does publish (unlike Spotify/Genius), so the gate gets real budget
// tracking for this API.
type RateLimitInfo struct {
	Remaining    int
	Limit        int
	LastResponse int
}

func (c *Client) do(ctx context.Context, path string, out any) (RateLimitInfo, error) {
	sep := "?"
	if containsQuery(path) {
		sep = "&"
	}
	full := fmt.Sprintf("%s%s%skey=%s&secret=%s", baseURL, path, sep, url.QueryEscape(c.key), url.QueryEscape(c.secret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return RateLimitInfo{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return RateLimitInfo{}, err
	}
	defer resp.Body.Close()

	info := RateLimitInfo{LastResponse: resp.StatusCode}
	info.Remaining, _ = strconv.Atoi(resp.Header.Get("X-Discogs-Ratelimit-Remaining"))
	info.Limit, _ = strconv.Atoi(resp.Header.Get("X-Discogs-Ratelimit"))

	if resp.StatusCode >= 400 {
		return info, fmt.Errorf("discogs: %s returned %d", path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return info, fmt.Errorf("discogs: decode %s: %w", path, err)
		}
	}
	return info, nil
}

func containsQuery(path string) bool {
	return strings.Contains(path, "?")
}

// ReleaseCredits is the subset of a Discogs release's credit list this
// system uses.
type ReleaseCredits struct {
	Producers []string
}

type releaseResponse struct {
	ExtraArtists []struct {
		Name string `json:"name"`
		Role string `json:"role"`
	} `json:"extraartists"`
}

// Release fetches a release's extra-artist credits and extracts
// producers from the role field.
func (c *Client) Release(ctx context.Context, releaseID string) (ReleaseCredits, RateLimitInfo, error) {
	path := fmt.Sprintf("/releases/%s", releaseID)
	var resp releaseResponse
	info, err := c.do(ctx, path, &resp)
	if err != nil {
		return ReleaseCredits{}, info, err
	}
	var credits ReleaseCredits
	for _, a := range resp.ExtraArtists {
		if strings.Contains(strings.ToLower(a.Role), "producer") {
			credits.Producers = append(credits.Producers, a.Name)
		}
	}
	return credits, info, nil
}
