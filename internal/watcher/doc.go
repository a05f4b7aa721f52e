// Package watcher keeps a configuration store in sync with its backing file.
//
// A Watcher owns one background goroutine that waits on a Detector. Each detected
// change re-reads and re-parses the file and, only on success, publishes the result.
// Failed reloads are logged and the previous snapshot stays current.
//
// Two detectors are provided: PollDetector compares modification times on a fixed
// interval, NotifyDetector subscribes to fsnotify events for the file's directory.
package watcher
