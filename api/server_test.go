package api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/noteforge/beatqueue/api"
	"github.com/noteforge/beatqueue/queue"
	"github.com/noteforge/beatqueue/store"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "modernc.org/sqlite"
)

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", "file::memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	db := bun.NewDB(sqlDB, sqlitedialect.New())
	if err := store.InitDB(context.Background(), db); err != nil {
		t.Fatal(err)
	}
	s := store.New(db)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := queue.NewRegistry()
	dispatcher := queue.NewDispatcher(s, registry, queue.NewRetryPolicy(), log, "worker-1")
	maintenance := queue.NewMaintenance(s, log)
	monitor := queue.NewMonitor(s, queue.NewLogSink(log), log)
	scheduler := queue.NewScheduler(func(ctx context.Context, target string) error { return nil }, log)

	return &api.Server{
		Dispatcher:  dispatcher,
		Maintenance: maintenance,
		Scheduler:   scheduler,
		Monitor:     monitor,
		Registry:    registry,
		Store:       s,
		Log:         log,
	}
}

func TestCORSPreflightReturnsEmpty200(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/worker", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWorkerEndpointReturnsIdleSummary(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/worker", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["claimed"] != float64(0) {
		t.Fatalf("expected idle summary with claimed=0, got %v", body)
	}
}

func TestDiscoverArtistsEndpointQueuesBatch(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/discover-artists", "application/json", strings.NewReader(`{"query":"jazz"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "queued" {
		t.Fatalf("expected status queued, got %v", body)
	}
}
