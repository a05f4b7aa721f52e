package application

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/storage"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

func newTestStore(t *testing.T, doc string) *storage.Store {
	t.Helper()
	snap, err := config.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return storage.New(snap)
}

func TestNewInitializesDependencies(t *testing.T) {
	store := newTestStore(t, `
app:
  name: Atlas
api:
  host: 127.0.0.1
  port: 8085
  prefix: /svc/
  enable_request_logging: false
  rate_limit: {rps: 0, burst: 0}
`)
	logger := zaptest.NewLogger(t)

	app := New(store, logger)

	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
	if app.Server().Addr != "127.0.0.1:8085" {
		t.Fatalf("expected address 127.0.0.1:8085, got %s", app.Server().Addr)
	}
	if app.Settings().Prefix != "/svc" {
		t.Fatalf("expected normalized prefix /svc, got %s", app.Settings().Prefix)
	}

	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/svc/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health under prefix, got %d", rec.Code)
	}
}

func TestSettingsDefaults(t *testing.T) {
	settings := SettingsFromSection(config.Section{})

	if settings.Addr() != "0.0.0.0:8000" {
		t.Fatalf("expected default address 0.0.0.0:8000, got %s", settings.Addr())
	}
	if settings.Prefix != "/api/v1" {
		t.Fatalf("expected default prefix /api/v1, got %s", settings.Prefix)
	}
	if settings.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("expected default grace period 10s, got %s", settings.ShutdownGracePeriod)
	}
	if settings.RateLimitRPS != 25 || settings.RateLimitBurst != 50 {
		t.Fatalf("unexpected default rate limit %v/%d", settings.RateLimitRPS, settings.RateLimitBurst)
	}
	if !settings.EnableRequestLogging {
		t.Fatalf("expected request logging enabled by default")
	}
}

func TestSettingsFromSection(t *testing.T) {
	store := newTestStore(t, `
api:
  host: "::1"
  port: 9090
  read_header_timeout: 2s
  write_timeout: 3
  idle_timeout: 1m
  shutdown_grace_period: 500ms
  rate_limit:
    rps: 2.5
    burst: 4
`)
	settings := SettingsFromSection(store.Sub("api"))

	if settings.Addr() != "[::1]:9090" {
		t.Fatalf("expected address [::1]:9090, got %s", settings.Addr())
	}
	if settings.ReadHeaderTimeout != 2*time.Second ||
		settings.WriteTimeout != 3*time.Second ||
		settings.IdleTimeout != time.Minute ||
		settings.ShutdownGracePeriod != 500*time.Millisecond {
		t.Fatalf("unexpected timeouts %+v", settings)
	}
	if settings.RateLimitRPS != 2.5 || settings.RateLimitBurst != 4 {
		t.Fatalf("unexpected rate limit %v/%d", settings.RateLimitRPS, settings.RateLimitBurst)
	}
}

func TestNewServerAppliesSettings(t *testing.T) {
	settings := Settings{
		Host:              "",
		Port:              9090,
		ReadHeaderTimeout: 20 * time.Millisecond,
		WriteTimeout:      30 * time.Millisecond,
		IdleTimeout:       40 * time.Millisecond,
	}
	handler := http.NewServeMux()

	server := NewServer(settings, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != settings.ReadHeaderTimeout ||
		server.WriteTimeout != settings.WriteTimeout ||
		server.IdleTimeout != settings.IdleTimeout {
		t.Fatalf("server timeouts do not match settings")
	}
}

func TestBuildRootHandler(t *testing.T) {
	apiInvoked := false
	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			t.Fatalf("unexpected path passed to API handler: %s", r.URL.Path)
		}
		apiInvoked = true
		w.WriteHeader(http.StatusNoContent)
	})

	handler := BuildRootHandler("/api/v1", apiHandler)

	t.Run("redirects root to api", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("expected status 307, got %d", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "/api/v1/" {
			t.Fatalf("expected redirect to /api/v1/, got %s", got)
		}
	})

	t.Run("returns not found for unknown paths", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("forwards api traffic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected status 204, got %d", rec.Code)
		}
		if !apiInvoked {
			t.Fatalf("expected API handler to be invoked")
		}
	})
}

func TestBuildRootHandlerWithoutPrefix(t *testing.T) {
	apiHandler := http.NotFoundHandler()
	if got := BuildRootHandler("", apiHandler); got == nil {
		t.Fatalf("expected handler")
	}
}

func TestNewWiresWatcherStats(t *testing.T) {
	store := newTestStore(t, "api:\n  enable_request_logging: false\n")
	app := New(store, zaptest.NewLogger(t), WithWatcherStats(func() watcher.Stats {
		return watcher.Stats{State: watcher.StateWatching, Strategy: "notify", Reloads: 4}
	}))

	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/config/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Watcher struct {
			Strategy string `json:"strategy"`
			Reloads  uint64 `json:"reloads"`
		} `json:"watcher"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Watcher.Strategy != "notify" || body.Watcher.Reloads != 4 {
		t.Fatalf("unexpected watcher block %+v", body.Watcher)
	}
}

func TestRateLimitFollowsReload(t *testing.T) {
	store := newTestStore(t, `
api:
  enable_request_logging: false
  rate_limit: {rps: 0.001, burst: 1}
`)
	handler := New(store, zaptest.NewLogger(t)).Server().Handler

	status := func() int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
		return rec.Code
	}

	if got := status(); got != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", got)
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", got)
	}

	reload := func(doc string) {
		t.Helper()
		snap, err := config.Parse([]byte(doc))
		if err != nil {
			t.Fatalf("parse config: %v", err)
		}
		store.Replace(snap)
	}

	reload("api:\n  rate_limit: {rps: 0, burst: 0}\n")
	for i := 0; i < 3; i++ {
		if got := status(); got != http.StatusOK {
			t.Fatalf("expected disabled limiter after reload, got %d", got)
		}
	}

	reload("api:\n  rate_limit: {rps: 0.001, burst: 2}\n")
	if status() != http.StatusOK || status() != http.StatusOK {
		t.Fatalf("expected re-enabled limiter to allow its burst")
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Fatalf("expected re-enabled limiter to limit, got %d", got)
	}
}
