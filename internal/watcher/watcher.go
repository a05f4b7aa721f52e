package watcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eugenenazirov/lithium/internal/config"
)

var (
	// ErrAlreadyStarted is returned by Start on a watcher that is already running.
	ErrAlreadyStarted = errors.New("watcher already started")
	// ErrStopped is returned by Start on a watcher that has been stopped. Watchers cannot restart.
	ErrStopped = errors.New("watcher stopped")
)

const defaultFailureLogInterval = 5 * time.Second

// State is the watcher's position in its lifecycle.
type State int32

const (
	StateStopped State = iota
	StateWatching
	StateReloadPending
	StateReloading
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateWatching:
		return "watching"
	case StateReloadPending:
		return "reload_pending"
	case StateReloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// Publisher receives snapshots produced by successful reloads. Snapshot reports the
// content currently published, whose ModTime seeds change detection.
type Publisher interface {
	Snapshot() config.Snapshot
	Replace(next config.Snapshot) config.Snapshot
}

// Stats is a point-in-time view of watcher activity.
type Stats struct {
	State      State
	Strategy   string
	Attempts   uint64
	Reloads    uint64
	Failures   uint64
	LastError  error
	LastReload time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger used for reload and failure reports.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger.Store(logger)
		}
	}
}

// WithFailureLogInterval limits failure logs to one per interval. Failures in between
// are logged at debug level and counted in the next emitted error.
func WithFailureLogInterval(interval time.Duration) Option {
	return func(w *Watcher) {
		if interval > 0 {
			w.failureLog = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// Watcher runs a Detector in a background goroutine and reloads the file on each change.
type Watcher struct {
	path      string
	detector  Detector
	publisher Publisher
	load      func(path string) (config.Snapshot, error)
	logger    atomic.Pointer[zap.Logger]

	failureLog *rate.Limiter
	suppressed atomic.Int64

	state atomic.Int32

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}

	attempts atomic.Uint64
	reloads  atomic.Uint64
	failures atomic.Uint64

	statsMu    sync.Mutex
	lastErr    error
	lastReload time.Time
}

// New creates a watcher for path that publishes reloaded snapshots to publisher.
func New(path string, detector Detector, publisher Publisher, opts ...Option) *Watcher {
	w := &Watcher{
		path:       path,
		detector:   detector,
		publisher:  publisher,
		load:       config.Load,
		failureLog: rate.NewLimiter(rate.Every(defaultFailureLogInterval), 1),
	}
	w.logger.Store(zap.NewNop())
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start opens the detector and spawns the watch goroutine. The goroutine ends when
// ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return ErrAlreadyStarted
	}

	if err := w.detector.Open(w.path, w.publisher.Snapshot().ModTime); err != nil {
		return fmt.Errorf("open %s detector: %w", w.detector.Name(), err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.started = true
	w.setState(StateWatching)

	go w.run(runCtx)
	return nil
}

// Stop terminates the watch goroutine and waits for it to exit. An in-flight reload
// is allowed to finish. Stop is idempotent and safe to call before Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	w.setState(StateStopped)
}

// SetLogger replaces the logger used for reload reports. It is safe to call while
// the watcher runs; a nil logger is ignored.
func (w *Watcher) SetLogger(logger *zap.Logger) {
	if logger != nil {
		w.logger.Store(logger)
	}
}

func (w *Watcher) log() *zap.Logger {
	return w.logger.Load()
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	return State(w.state.Load())
}

// Stats returns counters describing reload activity so far.
func (w *Watcher) Stats() Stats {
	w.statsMu.Lock()
	lastErr, lastReload := w.lastErr, w.lastReload
	w.statsMu.Unlock()

	return Stats{
		State:      w.State(),
		Strategy:   w.detector.Name(),
		Attempts:   w.attempts.Load(),
		Reloads:    w.reloads.Load(),
		Failures:   w.failures.Load(),
		LastError:  lastErr,
		LastReload: lastReload,
	}
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer func() {
		if err := w.detector.Close(); err != nil {
			w.log().Warn("close config detector", zap.String("strategy", w.detector.Name()), zap.Error(err))
		}
		w.setState(StateStopped)
		w.log().Info("config watcher stopped", zap.String("path", w.path))
	}()

	w.log().Info("config watcher started",
		zap.String("path", w.path),
		zap.String("strategy", w.detector.Name()),
	)
	w.detector.Run(ctx, w.reload, w.reportError)
}

func (w *Watcher) reload() {
	w.setState(StateReloadPending)
	defer w.setState(StateWatching)

	w.log().Info("config change detected, reloading", zap.String("path", w.path))
	w.setState(StateReloading)
	w.attempts.Add(1)

	start := time.Now()
	snap, err := w.load(w.path)
	if err != nil {
		w.recordError(err)
		w.failures.Add(1)
		w.logFailure("config reload failed, keeping previous snapshot", err)
		return
	}

	published := w.publisher.Replace(snap)
	w.reloads.Add(1)

	w.statsMu.Lock()
	w.lastReload = published.LoadedAt
	w.statsMu.Unlock()

	w.log().Info("config reloaded",
		zap.String("path", w.path),
		zap.Uint64("version", published.Version),
		zap.Strings("keys", published.Keys()),
		zap.Duration("duration", time.Since(start)),
	)
}

func (w *Watcher) reportError(err error) {
	w.recordError(err)
	w.logFailure("config watcher error", err)
}

func (w *Watcher) recordError(err error) {
	w.statsMu.Lock()
	w.lastErr = err
	w.statsMu.Unlock()
}

func (w *Watcher) logFailure(msg string, err error) {
	fields := []zap.Field{zap.String("path", w.path), zap.Error(err)}

	if !w.failureLog.Allow() {
		w.suppressed.Add(1)
		w.log().Debug(msg, fields...)
		return
	}
	if n := w.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	w.log().Error(msg, fields...)
}

func (w *Watcher) setState(s State) {
	w.state.Store(int32(s))
}
