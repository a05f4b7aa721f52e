package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/eugenenazirov/lithium/internal/config"
	"github.com/eugenenazirov/lithium/internal/storage"
)

// Logger is a zap logger whose console level can change at runtime.
type Logger struct {
	*zap.Logger

	level   zap.AtomicLevel
	rotator *lumberjack.Logger
}

// FromSection builds a Logger from a `log` configuration section.
func FromSection(section config.Section) (*Logger, error) {
	opts, err := OptionsFromSection(section)
	if err != nil {
		return nil, err
	}
	return NewWithOptions(opts)
}

// NewWithOptions builds a Logger writing to stdout and, when configured, a rotating file.
func NewWithOptions(opts Options) (*Logger, error) {
	level := zap.NewAtomicLevelAt(opts.ConsoleLevel)

	console := opts.console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}
	cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(opts), console, level)}

	var rotator *lumberjack.Logger
	if opts.File != nil {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   filepath.Join(opts.Dir, opts.File.Filename),
			MaxSize:    opts.File.MaxSizeMB,
			MaxAge:     opts.File.MaxAgeDays,
			MaxBackups: opts.File.MaxBackups,
			Compress:   opts.File.Compress,
			LocalTime:  true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig()),
			zapcore.AddSync(rotator),
			opts.File.Level,
		))
	}

	return &Logger{
		Logger:  zap.New(zapcore.NewTee(cores...), zap.AddCaller()),
		level:   level,
		rotator: rotator,
	}, nil
}

// Level returns the current console level.
func (l *Logger) Level() zapcore.Level {
	return l.level.Level()
}

// SetLevel changes the console level.
func (l *Logger) SetLevel(level zapcore.Level) {
	l.level.SetLevel(level)
}

// Close flushes buffered entries and closes the rotating file, if any.
func (l *Logger) Close() error {
	var err error
	if syncErr := l.Sync(); syncErr != nil && !isStdStreamSyncError(syncErr) {
		err = multierr.Append(err, syncErr)
	}
	if l.rotator != nil {
		err = multierr.Append(err, l.rotator.Close())
	}
	return err
}

// Subscriber is the part of the store FollowLevel needs.
type Subscriber interface {
	Subscribe(id string, fn storage.Subscriber)
}

// FollowLevel keeps the console level in step with log.console.level on every reload.
// An unparsable level leaves the current one in place.
func (l *Logger) FollowLevel(store Subscriber) {
	store.Subscribe("logging.level", func(snap config.Snapshot) {
		name := snap.Sub("log").Sub("console").GetString("level", "INFO")
		level, err := ParseLevel(name)
		if err != nil {
			l.Warn("ignoring invalid log level from reloaded config", zap.String("level", name), zap.Error(err))
			return
		}
		if level != l.Level() {
			l.Info("log level changed", zap.Stringer("from", l.Level()), zap.Stringer("to", level))
			l.SetLevel(level)
		}
	})
}

func consoleEncoder(opts Options) zapcore.Encoder {
	cfg := encoderConfig()
	if opts.ConsoleFormat == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if opts.Colorize {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

// isStdStreamSyncError filters the EINVAL/ENOTTY errors returned when syncing a terminal.
func isStdStreamSyncError(err error) bool {
	var pathErr *os.PathError
	for _, e := range multierr.Errors(err) {
		if !errors.As(e, &pathErr) || (pathErr.Path != "/dev/stdout" && pathErr.Path != "/dev/stderr") {
			return false
		}
	}
	return true
}
