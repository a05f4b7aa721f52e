package watcher

import (
	"context"
	"time"
)

// Detector reports changes to a single file.
type Detector interface {
	// Name identifies the strategy in logs.
	Name() string
	// Open acquires whatever the detector needs to watch path. baseline is the
	// modification time of the content already published; a file whose mtime differs
	// from it counts as changed. A zero baseline means the file's mtime at Open.
	// It runs synchronously inside Watcher.Start.
	Open(path string, baseline time.Time) error
	// Run blocks until ctx is done. It calls onChange once per detected change and
	// onError for internal failures, then keeps going.
	Run(ctx context.Context, onChange func(), onError func(error))
	// Close releases resources acquired by Open.
	Close() error
}
