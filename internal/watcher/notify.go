package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// NotifyDetector watches the file's directory with fsnotify and reports write and
// create events for the file itself. Watching the directory keeps events flowing when
// editors replace the file instead of writing it in place.
type NotifyDetector struct {
	path    string
	watcher *fsnotify.Watcher
	// stale is set by Open when the file changed before the watch was in place.
	stale bool
}

// NewNotifyDetector creates an event-driven detector.
func NewNotifyDetector() *NotifyDetector {
	return &NotifyDetector{}
}

func (d *NotifyDetector) Name() string {
	return "notify"
}

// Open watches the file's directory. Events from before the watch exist are lost,
// so the file's mtime is compared with baseline once after the watch is added.
func (d *NotifyDetector) Open(path string, baseline time.Time) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	d.path = filepath.Clean(abs)
	d.watcher = fsw
	if !baseline.IsZero() {
		if info, err := os.Stat(d.path); err == nil && !info.ModTime().Equal(baseline) {
			d.stale = true
		}
	}
	return nil
}

func (d *NotifyDetector) Run(ctx context.Context, onChange func(), onError func(error)) {
	if d.stale {
		d.stale = false
		onChange()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != d.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				onChange()
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			onError(fmt.Errorf("fsnotify: %w", err))
		}
	}
}

func (d *NotifyDetector) Close() error {
	if d.watcher == nil {
		return nil
	}
	return d.watcher.Close()
}
