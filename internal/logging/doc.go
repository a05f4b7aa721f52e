// Package logging builds the zap loggers used across the service: a bootstrap JSON
// logger for startup, and a logger configured from the store's `log` section with a
// rotating file sink and a console level that follows configuration reloads.
package logging
