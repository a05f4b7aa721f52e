package application

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/eugenenazirov/lithium/internal/api"
	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/storage"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage  storage.Storage
	settings Settings
	handler  *api.Handler
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// Option configures App construction.
type Option func(*options)

type options struct {
	stats func() watcher.Stats
}

// WithWatcherStats exposes watcher activity on the config status endpoint.
func WithWatcherStats(stats func() watcher.Stats) Option {
	return func(o *options) {
		o.stats = stats
	}
}

// New initializes the application from the `api` section of the store.
func New(store storage.Storage, logger *zap.Logger, opts ...Option) *App {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	settings := SettingsFromSection(store.Sub("api"))

	var handlerOpts []api.HandlerOption
	if o.stats != nil {
		handlerOpts = append(handlerOpts, api.WithWatcherStats(o.stats))
	}
	handler := api.NewHandler(store, handlerOpts...)
	limiter := api.NewRateLimiter(settings.RateLimitRPS, settings.RateLimitBurst)
	apiRouter := api.NewRouter(handler, logger,
		api.WithPrefix(settings.Prefix),
		api.WithLogging(settings.EnableRequestLogging),
		api.WithRateLimiter(limiter),
	)
	followRateLimit(store, limiter, logger)

	return &App{
		storage:  store,
		settings: settings,
		handler:  handler,
		router:   apiRouter,
		logger:   logger,
		server:   NewServer(settings, BuildRootHandler(settings.Prefix, apiRouter)),
	}
}

// followRateLimit re-applies api.rate_limit to limiter after every reload.
func followRateLimit(store storage.Storage, limiter *api.RateLimiter, logger *zap.Logger) {
	store.Subscribe("api.rate_limit", func(snap config.Snapshot) {
		next := SettingsFromSection(snap.Sub("api"))
		if limiter.Update(next.RateLimitRPS, next.RateLimitBurst) {
			logger.Info("rate limit updated",
				zap.Float64("rps", next.RateLimitRPS),
				zap.Int("burst", next.RateLimitBurst),
			)
		}
	})
}

// BuildRootHandler mounts the API under prefix and redirects "/" to the API root.
func BuildRootHandler(prefix string, apiHandler http.Handler) http.Handler {
	if prefix == "" {
		return apiHandler
	}

	mux := http.NewServeMux()
	mux.Handle(prefix+"/", apiHandler)
	mux.Handle("/{$}", http.RedirectHandler(prefix+"/", http.StatusTemporaryRedirect))
	return mux
}

// NewServer creates and configures an HTTP server from the provided settings.
func NewServer(settings Settings, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              settings.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: settings.ReadHeaderTimeout,
		WriteTimeout:      settings.WriteTimeout,
		IdleTimeout:       settings.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Settings returns the server settings the app was built with.
func (a *App) Settings() Settings {
	return a.settings
}
