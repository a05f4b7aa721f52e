// Package config resolves, reads and parses the YAML configuration file that backs
// the process-wide store. Files live in a configuration directory and are named
// config_{env}.yml or config_{env}.yaml; when the requested environment has no file
// the dev profile is used instead. Parsed files become immutable Snapshots.
package config
