package logging

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap/zapcore"

	"github.com/eugenenazirov/lithium/internal/config"
)

const (
	defaultDir         = "logs"
	defaultFilename    = "lithium.log"
	defaultRotation    = "1 MB"
	defaultRetention   = "7 days"
	defaultCompression = "zip"
	megabyte           = 1 << 20
)

// Options is the logger configuration read from the `log` section.
type Options struct {
	Dir           string
	ConsoleLevel  zapcore.Level
	ConsoleFormat string
	Colorize      bool
	// File is nil when the section has no `file` block.
	File *FileOptions

	console zapcore.WriteSyncer
}

// FileOptions configures the rotating file sink.
type FileOptions struct {
	Filename   string
	Level      zapcore.Level
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// OptionsFromSection reads logger options from a `log` section. Missing keys take
// defaults; values that are present but cannot be interpreted are errors.
//
//	log:
//	  dir: logs
//	  console: {level: INFO, format: console, colorize: true}
//	  file: {filename: lithium.log, level: DEBUG, rotation: 1 MB, retention: 7 days, compression: zip}
func OptionsFromSection(section config.Section) (Options, error) {
	console := section.Sub("console")

	level, err := ParseLevel(console.GetString("level", "INFO"))
	if err != nil {
		return Options{}, fmt.Errorf("log.console.level: %w", err)
	}

	opts := Options{
		Dir:           section.GetString("dir", defaultDir),
		ConsoleLevel:  level,
		ConsoleFormat: strings.ToLower(console.GetString("format", "console")),
		Colorize:      console.GetBool("colorize", true),
	}

	if !section.Has("file") {
		return opts, nil
	}

	fileOpts, err := fileOptionsFromSection(section.Sub("file"))
	if err != nil {
		return Options{}, err
	}
	opts.File = &fileOpts
	return opts, nil
}

func fileOptionsFromSection(file config.Section) (FileOptions, error) {
	level, err := ParseLevel(file.GetString("level", "DEBUG"))
	if err != nil {
		return FileOptions{}, fmt.Errorf("log.file.level: %w", err)
	}

	opts := FileOptions{
		Filename: file.GetString("filename", defaultFilename),
		Level:    level,
	}

	size, err := humanize.ParseBytes(file.GetString("rotation", defaultRotation))
	if err != nil {
		return FileOptions{}, fmt.Errorf("log.file.rotation: %w", err)
	}
	opts.MaxSizeMB = max(1, int(math.Ceil(float64(size)/megabyte)))

	// An integer retention keeps that many rotated files; a string is an age.
	if backups := file.GetInt("retention", -1); backups >= 0 {
		opts.MaxBackups = backups
	} else {
		age, err := parseRetention(file.GetString("retention", defaultRetention))
		if err != nil {
			return FileOptions{}, fmt.Errorf("log.file.retention: %w", err)
		}
		opts.MaxAgeDays = max(1, int(math.Ceil(age.Hours()/24)))
	}

	opts.Compress = compressionEnabled(file)
	return opts, nil
}

// compressionEnabled reads log.file.compression. Any format name enables gzip
// rotation; an empty string, "none" or false disables it.
func compressionEnabled(file config.Section) bool {
	switch v := file.Get("compression", defaultCompression).(type) {
	case bool:
		return v
	case string:
		v = strings.ToLower(strings.TrimSpace(v))
		return v != "" && v != "none"
	default:
		return false
	}
}

var retentionUnits = map[string]string{
	"second": "s", "seconds": "s",
	"minute": "m", "minutes": "m",
	"hour": "h", "hours": "h",
	"day": "d", "days": "d",
	"week": "w", "weeks": "w",
}

// parseRetention accepts "7 days", "2 weeks" as well as compact forms like "7d" or "36h".
func parseRetention(raw string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(raw))
	if len(fields) == 2 {
		if unit, ok := retentionUnits[fields[1]]; ok {
			raw = fields[0] + unit
		}
	}
	return str2duration.ParseDuration(strings.Join(strings.Fields(raw), ""))
}

// ParseLevel maps level names, including WARNING, SUCCESS, TRACE and CRITICAL, onto zap levels.
func ParseLevel(name string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return zapcore.DebugLevel, nil
	case "success":
		return zapcore.InfoLevel, nil
	case "warning":
		return zapcore.WarnLevel, nil
	case "critical":
		return zapcore.FatalLevel, nil
	}
	return zapcore.ParseLevel(name)
}
