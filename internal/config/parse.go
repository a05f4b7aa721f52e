package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var yamlLocation = regexp.MustCompile(`line (\d+)(?:, column (\d+))?`)

// Parse decodes YAML bytes into a Snapshot. An empty document yields an empty
// snapshot. Malformed content or a non-mapping root returns a *ParseError.
func Parse(data []byte) (Snapshot, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, newParseError(err)
	}

	switch root := normalize(raw).(type) {
	case nil:
		return Snapshot{Section: Section{values: map[string]any{}}}, nil
	case map[string]any:
		return Snapshot{Section: Section{values: root}}, nil
	default:
		return Snapshot{}, &ParseError{Err: fmt.Errorf("%w, got %T", ErrNotMapping, root)}
	}
}

// Load reads and parses the file at path. The returned snapshot has Version 0;
// the store assigns versions when it publishes.
//
// ModTime is taken before the read, so an edit racing the read is seen as newer
// than the snapshot and reloaded again.
func Load(path string) (Snapshot, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Snapshot{}, &ReadError{Path: path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, &ReadError{Path: path, Err: err}
	}

	snap, err := Parse(data)
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return Snapshot{}, err
	}

	snap.Path = path
	snap.ModTime = info.ModTime()
	snap.LoadedAt = time.Now().UTC()
	return snap, nil
}

func newParseError(err error) *ParseError {
	perr := &ParseError{Err: err}
	if m := yamlLocation.FindStringSubmatch(err.Error()); m != nil {
		perr.Line, _ = strconv.Atoi(m[1])
		if m[2] != "" {
			perr.Column, _ = strconv.Atoi(m[2])
		}
	}
	return perr
}

// normalize converts the decoder's map[any]any nodes into map[string]any so every
// nested mapping can be addressed by string keys.
func normalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	default:
		return val
	}
}
