// Package config loads the process-wide immutable Config at startup
// using github.com/spf13/viper (env-var driven, no config file), per
// the enumerated environment configuration in §6. It is loaded once in
// cmd/server/main.go and passed down constructor-style to every
// collaborator, the same way the teacher passes its WorkerConfig —
// nothing in this repo reaches for an ambient singleton.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved, immutable process configuration.
type Config struct {
	// Store
	DatabaseURL string

	// Spotify (OAuth2 client-credentials)
	SpotifyClientID     string
	SpotifyClientSecret string

	// Genius (Bearer)
	GeniusAccessToken string

	// Discogs (key/secret)
	DiscogsConsumerKey    string
	DiscogsConsumerSecret string

	// Internal invocation transport
	InternalBaseURL string
	InternalBearer  string

	// HTTP server
	ListenAddr string

	// Engine tuning
	MaxConcurrentJobs int
	LeaseDuration     time.Duration
	WorkerID          string
}

// Load reads configuration from BEATQUEUE_-prefixed environment
// variables, applying defaults for the listen address and engine
// tuning, and returns an error if the database URL is not set. No
// other field is validated.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BEATQUEUE")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("max_concurrent_jobs", 3)
	v.SetDefault("lease_duration", "5m")
	v.SetDefault("worker_id", "worker-1")

	cfg := &Config{
		DatabaseURL:           v.GetString("database_url"),
		SpotifyClientID:       v.GetString("spotify_client_id"),
		SpotifyClientSecret:   v.GetString("spotify_client_secret"),
		GeniusAccessToken:     v.GetString("genius_access_token"),
		DiscogsConsumerKey:    v.GetString("discogs_consumer_key"),
		DiscogsConsumerSecret: v.GetString("discogs_consumer_secret"),
		InternalBaseURL:       v.GetString("internal_base_url"),
		InternalBearer:        v.GetString("internal_bearer"),
		ListenAddr:            v.GetString("listen_addr"),
		MaxConcurrentJobs:     v.GetInt("max_concurrent_jobs"),
		LeaseDuration:         v.GetDuration("lease_duration"),
		WorkerID:              v.GetString("worker_id"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("config: BEATQUEUE_DATABASE_URL is required")
	}
	return cfg, nil
}
