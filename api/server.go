// Package api is the HTTP invocation surface (§6): each of
// {scheduler, worker, maintenance, monitor, discover-artists,
// process-album-page, process-track-page, identify-producers} is
// callable as an HTTP POST. Built on go-chi/chi and go-chi/cors,
// matching the router/middleware shape used across the retrieved pack
// (aristath-portfolioManager, stherrien-gorax, tomtom215-cartographus,
// fairyhunter13-ai-cv-evaluator).
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noteforge/beatqueue/batch"
	"github.com/noteforge/beatqueue/queue"
)

// Server bundles every engine collaborator the HTTP surface dispatches
// into.
type Server struct {
	Dispatcher  *queue.Dispatcher
	Maintenance *queue.Maintenance
	Scheduler   *queue.Scheduler
	Monitor     *queue.Monitor
	Registry    *queue.Registry
	Store       queue.Store
	Log         *slog.Logger
}

// Router builds the chi router for the invocation surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Post("/scheduler", s.handleScheduler)
	r.Post("/worker", s.handleWorker)
	r.Post("/maintenance", s.handleMaintenance)
	r.Post("/monitor", s.handleMonitor)
	r.Post("/discover-artists", s.handleDiscoverArtists)
	r.Post("/process-album-page", s.handleProcessAlbumPage)
	r.Post("/process-track-page", s.handleProcessTrackPage)
	r.Post("/identify-producers", s.handleIdentifyProducers)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	log.Error("request failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}

func (s *Server) handleWorker(w http.ResponseWriter, r *http.Request) {
	result, err := s.Dispatcher.Tick(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"claimed": 0, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	result, err := s.Maintenance.Tick(r.Context())
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	report, err := s.Monitor.Check(r.Context())
	if err != nil {
		writeError(w, s.Log, err)
		return
	}
	alertSent := map[string]any{"sent": len(report.Alerts) > 0}
	if len(report.Alerts) > 0 {
		alertSent["count"] = len(report.Alerts)
		alertSent["timestamp"] = report.Timestamp
	} else {
		alertSent["reason"] = "no alerts"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp":  report.Timestamp,
		"alerts":     report.Alerts,
		"metrics":    report.Metrics,
		"actions":    report.Actions,
		"alert_sent": alertSent,
	})
}

func (s *Server) handleScheduler(w http.ResponseWriter, r *http.Request) {
	s.Scheduler.Tick(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type discoverArtistsRequest struct {
	Query string `json:"query"`
	Limit string `json:"limit"`
}

func (s *Server) handleDiscoverArtists(w http.ResponseWriter, r *http.Request) {
	var req discoverArtistsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	md := batch.Metadata{}
	if req.Query != "" {
		md["query"] = req.Query
	}
	if req.Limit != "" {
		md["limit"] = req.Limit
	}

	b := batch.New("discover-artists", md)
	pushed, err := s.Store.Push(r.Context(), b, 0)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyActive) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_active"})
			return
		}
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "id": pushed.Id})
}

type seedBatchRequest struct {
	ArtistID  string `json:"artist_id"`
	AlbumID   string `json:"album_id"`
	TrackID   string `json:"track_id"`
	TrackName string `json:"track_name"`
}

func (s *Server) handleProcessAlbumPage(w http.ResponseWriter, r *http.Request) {
	s.seedBatch(w, r, "album_page", func(req seedBatchRequest) batch.Metadata {
		return batch.Metadata{"artist_id": req.ArtistID, "offset": float64(0), "limit": float64(50)}
	})
}

func (s *Server) handleProcessTrackPage(w http.ResponseWriter, r *http.Request) {
	s.seedBatch(w, r, "track_page", func(req seedBatchRequest) batch.Metadata {
		return batch.Metadata{"album_id": req.AlbumID, "offset": float64(0), "limit": float64(50)}
	})
}

func (s *Server) handleIdentifyProducers(w http.ResponseWriter, r *http.Request) {
	s.seedBatch(w, r, "producer_discovery", func(req seedBatchRequest) batch.Metadata {
		return batch.Metadata{"track_id": req.TrackID, "track_name": req.TrackName}
	})
}

func (s *Server) seedBatch(w http.ResponseWriter, r *http.Request, batchType string, toMetadata func(seedBatchRequest) batch.Metadata) {
	var req seedBatchRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	b := batch.New(batchType, toMetadata(req))
	pushed, err := s.Store.Push(r.Context(), b, 0)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyActive) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_active"})
			return
		}
		writeError(w, s.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "queued", "id": pushed.Id})
}
