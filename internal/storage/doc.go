// Package storage holds the process-wide configuration snapshot. Reads are lock-free
// atomic loads; Replace publishes a whole new snapshot in one pointer swap so readers
// never observe a partially applied configuration.
package storage
