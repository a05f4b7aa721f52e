package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoConfigFile is returned when none of the candidate configuration files exist.
	ErrNoConfigFile = errors.New("no configuration file found")
	// ErrNotMapping is returned when a document parses but its root is not a mapping.
	ErrNotMapping = errors.New("configuration root must be a mapping")
)

// ResolutionError lists every path that was tried while resolving the configuration file.
type ResolutionError struct {
	Dir       string
	Env       string
	Attempted []string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s for env %q: tried %s", ErrNoConfigFile, e.Env, strings.Join(e.Attempted, ", "))
}

// Is reports whether target is ErrNoConfigFile.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrNoConfigFile
}

// ParseError describes content that is not well-formed YAML or whose root is not a mapping.
// Line and Column are 1-based and zero when the decoder did not report a location.
type ParseError struct {
	Path   string
	Line   int
	Column int
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse config")
	if e.Path != "" {
		b.WriteString(" ")
		b.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
		if e.Column > 0 {
			fmt.Fprintf(&b, ", column %d", e.Column)
		}
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ReadError wraps an I/O failure while reading the configuration file.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read config %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}
