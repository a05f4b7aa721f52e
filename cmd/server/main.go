package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/lithium/internal/application"
	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/lifecycle"
	"github.com/eugenenazirov/lithium/internal/llm"
	"github.com/eugenenazirov/lithium/internal/logging"
	"github.com/eugenenazirov/lithium/internal/storage"
	"github.com/eugenenazirov/lithium/internal/watcher"
)

var signalNotify = signal.Notify

type cliOptions struct {
	configDir     string
	env           string
	strategy      lifecycle.Strategy
	pollInterval  time.Duration
	shutdownGrace time.Duration
}

func parseFlags(args []string) (cliOptions, error) {
	kingpinApp := kingpin.New("lithium", "Lithium - multi-agent engine with hot-reloadable YAML configuration")
	configDir := kingpinApp.Flag("config-dir", "Directory holding config_{env}.yml files").Default("configs").Envar("CONFIG_DIR").String()
	env := kingpinApp.Flag("env", "Environment profile; overrides the ENV variable").String()
	watch := kingpinApp.Flag("watch", "Change detection strategy").Default(string(lifecycle.StrategyPoll)).Enum(string(lifecycle.StrategyPoll), string(lifecycle.StrategyNotify))
	pollInterval := kingpinApp.Flag("poll-interval", "Interval between file checks with --watch=poll").Default(watcher.DefaultPollInterval.String()).Duration()
	shutdownGrace := kingpinApp.Flag("shutdown-grace", "Graceful shutdown timeout (0 uses api.shutdown_grace_period)").Default("0s").Duration()

	if _, err := kingpinApp.Parse(args); err != nil {
		return cliOptions{}, err
	}

	strategy, err := lifecycle.ParseStrategy(*watch)
	if err != nil {
		return cliOptions{}, err
	}

	return cliOptions{
		configDir:     *configDir,
		env:           *env,
		strategy:      strategy,
		pollInterval:  *pollInterval,
		shutdownGrace: *shutdownGrace,
	}, nil
}

// envLookup returns os.LookupEnv with ENV pinned to override when override is set.
func envLookup(override string) func(string) (string, bool) {
	if override == "" {
		return os.LookupEnv
	}
	return func(key string) (string, bool) {
		if key == config.EnvVar {
			return override, true
		}
		return os.LookupEnv(key)
	}
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	kingpin.FatalIfError(err, "invalid arguments")

	bootstrap, err := logging.New()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = bootstrap.Sync()
	}()

	controller := lifecycle.New(
		lifecycle.WithLogger(bootstrap),
		lifecycle.WithStrategy(opts.strategy),
		lifecycle.WithPollInterval(opts.pollInterval),
		lifecycle.WithLookupEnv(envLookup(opts.env)),
	)
	store, err := controller.Start(context.Background(), opts.configDir, config.DefaultEnv)
	if err != nil {
		bootstrap.Fatal("failed to start configuration store", zap.Error(err))
	}

	logger, closeLogger := appLogger(bootstrap, store)
	controller.SetLogger(logger)
	// The watcher may log until Stop returns, so the sinks close after it.
	defer func() {
		controller.Stop()
		closeLogger()
	}()

	if settings, err := llm.FromStore(store); err != nil {
		logger.Warn("model settings unavailable", zap.Error(err))
	} else {
		logger.Info("model settings loaded", zap.String("model", settings.Model), zap.Bool("stream", settings.Stream))
	}

	app := application.New(store, logger, application.WithWatcherStats(controller.Stats))
	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	grace := opts.shutdownGrace
	if grace <= 0 {
		grace = app.Settings().ShutdownGracePeriod
	}
	shutdown(app.Server(), grace, logger)
}

// appLogger builds the logger described by the `log` section and keeps its console
// level in step with reloads. The bootstrap logger is returned when the section is invalid.
func appLogger(bootstrap *zap.Logger, store *storage.Store) (*zap.Logger, func()) {
	logger, err := logging.FromSection(store.Sub("log"))
	if err != nil {
		bootstrap.Warn("invalid log section, keeping bootstrap logger", zap.Error(err))
		return bootstrap, func() {}
	}
	logger.FollowLevel(store)
	return logger.Logger, func() {
		_ = logger.Close()
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
