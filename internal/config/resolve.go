package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultEnv is the environment used when ENV is unset and as the resolution fallback.
	DefaultEnv = "dev"
	// EnvVar names the process environment variable that selects the environment.
	EnvVar = "ENV"
)

var extensions = []string{"yml", "yaml"}

// File identifies the resolved configuration file.
type File struct {
	Path string
	// Env is the environment whose file was selected. It differs from the requested
	// environment when resolution fell back to the dev profile.
	Env      string
	Fallback bool
}

// EnvFromProcess returns the value of ENV, or def when the variable is unset or blank.
func EnvFromProcess(def string) string {
	return EnvFrom(os.LookupEnv, def)
}

// EnvFrom is EnvFromProcess with an injectable lookup function.
func EnvFrom(lookup func(string) (string, bool), def string) string {
	if lookup == nil {
		return def
	}
	if env, ok := lookup(EnvVar); ok {
		if env = strings.TrimSpace(env); env != "" {
			return env
		}
	}
	return def
}

// Candidates lists the files Resolve checks, in priority order.
func Candidates(dir, env string) []string {
	envs := []string{env}
	if env != DefaultEnv {
		envs = append(envs, DefaultEnv)
	}

	out := make([]string, 0, len(envs)*len(extensions))
	for _, e := range envs {
		for _, ext := range extensions {
			out = append(out, filepath.Join(dir, "config_"+e+"."+ext))
		}
	}
	return out
}

// Resolve picks the authoritative configuration file for env inside dir.
// It tries config_{env}.yml, config_{env}.yaml, config_dev.yml and config_dev.yaml
// in that order and returns the first that exists.
func Resolve(dir, env string) (File, error) {
	candidates := Candidates(dir, env)
	for i, path := range candidates {
		if !isFile(path) {
			continue
		}
		fallback := i >= len(extensions)
		selected := env
		if fallback {
			selected = DefaultEnv
		}
		return File{Path: path, Env: selected, Fallback: fallback}, nil
	}
	return File{}, &ResolutionError{Dir: dir, Env: env, Attempted: candidates}
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
