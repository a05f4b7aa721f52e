// Package lifecycle owns startup and shutdown of the configuration store: resolve the
// file, load it synchronously, then start the background watcher. A Controller is
// meant to be created once per process and passed to whatever needs the store.
package lifecycle
