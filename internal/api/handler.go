package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/eugenenazirov/lithium/internal/storage"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultAppName = "Lithium"

// Handler serves requests from the current configuration snapshot.
type Handler struct {
	store storage.Storage
	stats func() watcher.Stats

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithWatcherStats adds watcher activity to the config status response.
func WithWatcherStats(stats func() watcher.Stats) HandlerOption {
	return func(h *Handler) {
		h.stats = stats
	}
}

// NewHandler constructs a Handler reading from store.
func NewHandler(store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		store: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	name := h.store.Sub("app").GetString("name", defaultAppName)
	writeJSON(w, http.StatusOK, welcomeResponse{
		Message: fmt.Sprintf("Welcome to %s Multi-Agent Engine", name),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Timestamp:     h.clock(),
		ConfigVersion: h.store.Snapshot().Version,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleConfigStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.store.Snapshot()
	app := snap.Sub("app")

	resp := configStatusResponse{
		Version:    snap.Version,
		Path:       snap.Path,
		LoadedAt:   snap.LoadedAt,
		Keys:       snap.Keys(),
		AppName:    app.GetString("name", defaultAppName),
		AppVersion: app.GetString("version", ""),
	}

	if h.stats != nil {
		stats := h.stats()
		resp.Watcher = &watcherStatus{
			State:    stats.State.String(),
			Strategy: stats.Strategy,
			Attempts: stats.Attempts,
			Reloads:  stats.Reloads,
			Failures: stats.Failures,
		}
		if stats.LastError != nil {
			resp.Watcher.LastError = stats.LastError.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type welcomeResponse struct {
	Message string `json:"message"`
}

type healthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	ConfigVersion uint64    `json:"configVersion"`
}

type configStatusResponse struct {
	Version    uint64         `json:"version"`
	Path       string         `json:"path"`
	LoadedAt   time.Time      `json:"loadedAt"`
	Keys       []string       `json:"keys"`
	AppName    string         `json:"appName"`
	AppVersion string         `json:"appVersion,omitempty"`
	Watcher    *watcherStatus `json:"watcher,omitempty"`
}

type watcherStatus struct {
	State     string `json:"state"`
	Strategy  string `json:"strategy"`
	Attempts  uint64 `json:"attempts"`
	Reloads   uint64 `json:"reloads"`
	Failures  uint64 `json:"failures"`
	LastError string `json:"lastError,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	writeJSON(w, status, errorResponse{
		Error:   message,
		Details: details,
	})
}
