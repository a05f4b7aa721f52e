package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/storage"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

var (
	// ErrAlreadyStarted is returned when Start is called more than once.
	ErrAlreadyStarted = errors.New("config controller already started")
	// ErrNotStarted is returned by accessors used before a successful Start.
	ErrNotStarted = errors.New("config controller not started")
)

// Strategy selects how the watcher detects file changes.
type Strategy string

const (
	StrategyPoll   Strategy = "poll"
	StrategyNotify Strategy = "notify"
)

// ParseStrategy converts a flag value into a Strategy.
func ParseStrategy(raw string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(raw))); s {
	case StrategyPoll, StrategyNotify:
		return s, nil
	default:
		return "", fmt.Errorf("unknown watch strategy %q (want poll or notify)", raw)
	}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for the controller and its watcher.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStrategy selects the change detection strategy. Defaults to polling.
func WithStrategy(s Strategy) Option {
	return func(c *Controller) {
		c.strategy = s
	}
}

// WithPollInterval sets the polling interval used by StrategyPoll.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.pollInterval = d
	}
}

// WithDetector overrides the strategy with a custom detector.
func WithDetector(d watcher.Detector) Option {
	return func(c *Controller) {
		c.detector = d
	}
}

// WithLookupEnv replaces os.LookupEnv when reading ENV.
func WithLookupEnv(lookup func(string) (string, bool)) Option {
	return func(c *Controller) {
		c.lookupEnv = lookup
	}
}

// WithFailureLogInterval is passed through to the watcher.
func WithFailureLogInterval(d time.Duration) Option {
	return func(c *Controller) {
		c.failureLogInterval = d
	}
}

// Controller starts and stops the configuration store as one unit.
type Controller struct {
	logger             *zap.Logger
	strategy           Strategy
	pollInterval       time.Duration
	detector           watcher.Detector
	lookupEnv          func(string) (string, bool)
	failureLogInterval time.Duration

	mu      sync.Mutex
	started bool
	file    config.File
	store   *storage.Store
	watcher *watcher.Watcher
}

// New creates a controller. Nothing is read until Start.
func New(opts ...Option) *Controller {
	c := &Controller{
		logger:       zap.NewNop(),
		strategy:     StrategyPoll,
		pollInterval: watcher.DefaultPollInterval,
		lookupEnv:    os.LookupEnv,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start reads ENV (falling back to defaultEnv), resolves the configuration file in
// configDir, loads it and starts watching it. Resolution or initial load failures are
// returned and leave no watcher running. The returned store is also available via Store.
func (c *Controller) Start(ctx context.Context, configDir, defaultEnv string) (*storage.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil, ErrAlreadyStarted
	}
	c.started = true

	env := config.EnvFrom(c.lookupEnv, defaultEnv)
	file, err := config.Resolve(configDir, env)
	if err != nil {
		return nil, fmt.Errorf("resolve config: %w", err)
	}
	if file.Fallback {
		c.logger.Warn("no config for environment, falling back to dev profile",
			zap.String("env", env),
			zap.String("path", file.Path),
		)
	}
	c.file = file

	snap, err := config.Load(file.Path)
	if err != nil {
		return nil, fmt.Errorf("initial config load: %w", err)
	}
	store := storage.New(snap)
	c.store = store
	c.logger.Info("config loaded",
		zap.String("env", file.Env),
		zap.String("path", file.Path),
		zap.Strings("keys", snap.Keys()),
	)

	opts := []watcher.Option{watcher.WithLogger(c.logger)}
	if c.failureLogInterval > 0 {
		opts = append(opts, watcher.WithFailureLogInterval(c.failureLogInterval))
	}
	w := watcher.New(file.Path, c.newDetector(), store, opts...)
	c.watcher = w
	if err := w.Start(ctx); err != nil {
		return nil, fmt.Errorf("start config watcher: %w", err)
	}

	return store, nil
}

// Stop stops the watcher and releases its resources. It is safe to call at any point,
// including after a failed Start, and more than once.
func (c *Controller) Stop() {
	c.mu.Lock()
	w := c.watcher
	c.mu.Unlock()

	if w != nil {
		w.Stop()
	}
}

// SetLogger replaces the logger used by the controller and, once started, its
// watcher. A nil logger is ignored.
func (c *Controller) SetLogger(logger *zap.Logger) {
	if logger == nil {
		return
	}
	c.mu.Lock()
	c.logger = logger
	w := c.watcher
	c.mu.Unlock()

	if w != nil {
		w.SetLogger(logger)
	}
}

// Store returns the store created by Start.
func (c *Controller) Store() (*storage.Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil, ErrNotStarted
	}
	return c.store, nil
}

// File returns the configuration file chosen at startup.
func (c *Controller) File() config.File {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file
}

// Stats reports watcher activity. Before Start it returns a zero Stats.
func (c *Controller) Stats() watcher.Stats {
	c.mu.Lock()
	w := c.watcher
	c.mu.Unlock()

	if w == nil {
		return watcher.Stats{}
	}
	return w.Stats()
}

func (c *Controller) newDetector() watcher.Detector {
	if c.detector != nil {
		return c.detector
	}
	if c.strategy == StrategyNotify {
		return watcher.NewNotifyDetector()
	}
	return watcher.NewPollDetector(c.pollInterval)
}
