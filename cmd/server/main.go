// Command server wires every collaborator — the Postgres-backed
// Store, the handler registry and its upstream API clients, the
// Dispatcher/Maintenance/Scheduler/Monitor engine components — and
// serves the HTTP invocation surface (§6).
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/noteforge/beatqueue/api"
	"github.com/noteforge/beatqueue/config"
	"github.com/noteforge/beatqueue/handlers"
	"github.com/noteforge/beatqueue/handlers/discogs"
	"github.com/noteforge/beatqueue/handlers/genius"
	"github.com/noteforge/beatqueue/handlers/spotify"
	"github.com/noteforge/beatqueue/queue"
	"github.com/noteforge/beatqueue/store"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DatabaseURL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	ctx := context.Background()
	if err := store.InitDB(ctx, db); err != nil {
		log.Error("schema init failed", "err", err)
		os.Exit(1)
	}

	st := store.New(db)
	gate := queue.NewGate(st, log)

	clients := handlers.Clients{
		Spotify: spotify.NewClient(cfg.SpotifyClientID, cfg.SpotifyClientSecret),
		Genius:  genius.NewClient(cfg.GeniusAccessToken),
		Discogs: discogs.NewClient(cfg.DiscogsConsumerKey, cfg.DiscogsConsumerSecret),
	}
	registry := handlers.NewRegistry(clients, st, gate, log)

	retry := queue.NewRetryPolicy()
	dispatcher := queue.NewDispatcher(st, registry, retry, log, cfg.WorkerID)
	if cfg.MaxConcurrentJobs > 0 {
		dispatcher.MaxJobs = cfg.MaxConcurrentJobs
	}
	maintenance := queue.NewMaintenance(st, log)
	monitor := queue.NewMonitor(st, queue.NewLogSink(log), log)
	scheduler := queue.NewScheduler(internalInvoker(cfg, log), log)

	srv := &api.Server{
		Dispatcher:  dispatcher,
		Maintenance: maintenance,
		Scheduler:   scheduler,
		Monitor:     monitor,
		Registry:    registry,
		Store:       st,
		Log:         log,
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.LeaseDuration)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// internalInvoker fires scheduled targets against this same process's
// own HTTP surface over the configured internal base URL — the
// fire-and-forget transport described in §4.6.
func internalInvoker(cfg *config.Config, log *slog.Logger) queue.Invoker {
	client := &http.Client{}
	return func(ctx context.Context, target string) error {
		url := cfg.InternalBaseURL + "/" + target
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
		if err != nil {
			return err
		}
		if cfg.InternalBearer != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.InternalBearer)
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		log.Info("scheduled invocation dispatched", "target", target, "status", resp.StatusCode)
		return nil
	}
}
