// Package application provides application initialization and dependency wiring.
// It reads the `api` section of the configuration store, builds the handlers,
// router and HTTP server, and keeps the main package focused on CLI parsing
// and orchestration.
package application
