package watcher

import (
	"context"
	"fmt"
	"os"
	"time"
)

// DefaultPollInterval is used when a non-positive interval is supplied.
const DefaultPollInterval = time.Second

// PollDetector stats the file on a fixed interval and reports a change whenever the
// modification time differs from the last one seen.
type PollDetector struct {
	interval time.Duration
	path     string
	lastSeen time.Time
}

// NewPollDetector creates a polling detector.
func NewPollDetector(interval time.Duration) *PollDetector {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollDetector{interval: interval}
}

func (d *PollDetector) Name() string {
	return "poll"
}

// Open seeds the last-seen modification time with baseline, so an edit made after
// the published content was read is picked up on the first tick. Without a baseline
// the current mtime is used; a file that cannot be stat'ed then gets a zero baseline
// and is reloaded once it reappears.
func (d *PollDetector) Open(path string, baseline time.Time) error {
	d.path = path
	d.lastSeen = baseline
	if baseline.IsZero() {
		if info, err := os.Stat(path); err == nil {
			d.lastSeen = info.ModTime()
		}
	}
	return nil
}

func (d *PollDetector) Run(ctx context.Context, onChange func(), onError func(error)) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.check(onChange, onError)
		}
	}
}

func (d *PollDetector) check(onChange func(), onError func(error)) {
	info, err := os.Stat(d.path)
	if err != nil {
		onError(fmt.Errorf("stat %s: %w", d.path, err))
		return
	}

	modTime := info.ModTime()
	if modTime.Equal(d.lastSeen) {
		return
	}
	// Advance before reloading so a file that stays invalid is not reloaded every tick.
	d.lastSeen = modTime
	onChange()
}

func (d *PollDetector) Close() error {
	return nil
}
