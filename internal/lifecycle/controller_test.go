package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

func envLookup(env string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if key == config.EnvVar && env != "" {
			return env, true
		}
		return "", false
	}
}

func writeConfig(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

type failingDetector struct{ err error }

func (f failingDetector) Name() string                             { return "failing" }
func (f failingDetector) Open(string, time.Time) error             { return f.err }
func (f failingDetector) Run(context.Context, func(), func(error)) {}
func (f failingDetector) Close() error                             { return nil }

func TestControllerStartFallsBackAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_dev.yml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeConfig(t, path, "app:\n  debug: false\n", base)

	c := New(
		WithLogger(zaptest.NewLogger(t)),
		WithPollInterval(10*time.Millisecond),
		WithLookupEnv(envLookup("staging")),
	)
	store, err := c.Start(context.Background(), dir, config.DefaultEnv)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)

	file := c.File()
	if file.Path != path || !file.Fallback || file.Env != config.DefaultEnv {
		t.Fatalf("unexpected resolved file %+v", file)
	}
	if got, _ := c.Store(); got != store {
		t.Fatalf("Store accessor returned a different store")
	}
	if store.Sub("app").GetBool("debug", true) {
		t.Fatalf("expected initial debug=false")
	}

	writeConfig(t, path, "app:\n  debug: true\n", base.Add(time.Second))
	require.Eventually(t, func() bool {
		return store.Sub("app").GetBool("debug", false)
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return c.Stats().Reloads == 1 }, 2*time.Second, 5*time.Millisecond)
	if stats := c.Stats(); stats.Strategy != string(StrategyPoll) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestControllerStopIsCleanAndBounded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_prod.yaml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeConfig(t, path, "a: 1\n", base)

	c := New(WithPollInterval(10*time.Millisecond), WithLookupEnv(envLookup("prod")))
	store, err := c.Start(context.Background(), dir, config.DefaultEnv)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	start := time.Now()
	c.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Stop took %s", elapsed)
	}
	c.Stop()

	writeConfig(t, path, "a: 2\n", base.Add(time.Second))
	time.Sleep(50 * time.Millisecond)
	if store.GetInt("a", 0) != 1 || store.Version() != 0 {
		t.Fatalf("reload happened after Stop")
	}
}

func TestControllerNotifyStrategy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_dev.yml")
	writeConfig(t, path, "a: 1\n", time.Now())

	c := New(WithStrategy(StrategyNotify), WithLookupEnv(envLookup("")))
	store, err := c.Start(context.Background(), dir, config.DefaultEnv)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)

	if err := os.WriteFile(path, []byte("a: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	require.Eventually(t, func() bool { return store.GetInt("a", 0) == 2 }, 2*time.Second, 5*time.Millisecond)
	if c.Stats().Strategy != string(StrategyNotify) {
		t.Fatalf("expected notify strategy, got %q", c.Stats().Strategy)
	}
}

func TestControllerResolutionFailure(t *testing.T) {
	c := New(WithLookupEnv(envLookup("prod")))

	_, err := c.Start(context.Background(), filepath.Join(t.TempDir(), "missing"), config.DefaultEnv)
	if !errors.Is(err, config.ErrNoConfigFile) {
		t.Fatalf("expected ErrNoConfigFile, got %v", err)
	}
	if _, err := c.Store(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if c.Stats().State != watcher.StateStopped {
		t.Fatalf("expected no watcher after failed start, got %s", c.Stats().State)
	}
	c.Stop()
}

func TestControllerInitialParseFailure(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "config_dev.yml"), "app: [\n", time.Now())

	c := New(WithLookupEnv(envLookup("")))
	_, err := c.Start(context.Background(), dir, config.DefaultEnv)

	var perr *config.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	c.Stop()
}

func TestControllerWatcherFailureAfterLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "config_dev.yml"), "a: 1\n", time.Now())

	openErr := errors.New("out of watch handles")
	c := New(WithDetector(failingDetector{err: openErr}), WithLookupEnv(envLookup("")))

	if _, err := c.Start(context.Background(), dir, config.DefaultEnv); !errors.Is(err, openErr) {
		t.Fatalf("expected detector error, got %v", err)
	}
	c.Stop()
	c.Stop()
}

func TestControllerStartTwice(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, "config_dev.yml"), "a: 1\n", time.Now())

	c := New(WithLookupEnv(envLookup("")))
	if _, err := c.Start(context.Background(), dir, config.DefaultEnv); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)

	if _, err := c.Start(context.Background(), dir, config.DefaultEnv); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestControllerSetLoggerReachesWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config_dev.yml")
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	writeConfig(t, path, "a: 1\n", base)

	c := New(WithPollInterval(10*time.Millisecond), WithLookupEnv(envLookup("")))
	c.SetLogger(zaptest.NewLogger(t))
	store, err := c.Start(context.Background(), dir, config.DefaultEnv)
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	t.Cleanup(c.Stop)

	core, logs := observer.New(zapcore.InfoLevel)
	c.SetLogger(zap.New(core))

	writeConfig(t, path, "a: 2\n", base.Add(time.Second))
	require.Eventually(t, func() bool { return store.GetInt("a", 0) == 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return logs.FilterMessage("config reloaded").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestParseStrategy(t *testing.T) {
	for raw, want := range map[string]Strategy{"poll": StrategyPoll, " Notify ": StrategyNotify} {
		got, err := ParseStrategy(raw)
		if err != nil || got != want {
			t.Fatalf("ParseStrategy(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseStrategy("inotify"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
