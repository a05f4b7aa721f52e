package application

import (
	"net"
	"strconv"
	"time"

	"github.com/eugenenazirov/lithium/internal/api"
	"github.com/eugenenazirov/lithium/internal/config"
)

const (
	defaultHost                = "0.0.0.0"
	defaultPort                = 8000
	defaultReadHeaderTimeout   = 5 * time.Second
	defaultWriteTimeout        = 15 * time.Second
	defaultIdleTimeout         = 60 * time.Second
	defaultShutdownGracePeriod = 10 * time.Second
	defaultRateLimitRPS        = 25.0
	defaultRateLimitBurst      = 50
)

// Settings holds the HTTP server configuration read from the `api` section.
// Server settings are read once at startup; a reload does not rebind the listener.
type Settings struct {
	Host                 string
	Port                 int
	Prefix               string
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	ShutdownGracePeriod  time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
}

// SettingsFromSection reads Settings from an `api` section, applying defaults for
// missing or mistyped keys.
func SettingsFromSection(section config.Section) Settings {
	limit := section.Sub("rate_limit")
	return Settings{
		Host:                 section.GetString("host", defaultHost),
		Port:                 section.GetInt("port", defaultPort),
		Prefix:               api.NormalizePrefix(section.GetString("prefix", api.DefaultPrefix)),
		ReadHeaderTimeout:    section.GetDuration("read_header_timeout", defaultReadHeaderTimeout),
		WriteTimeout:         section.GetDuration("write_timeout", defaultWriteTimeout),
		IdleTimeout:          section.GetDuration("idle_timeout", defaultIdleTimeout),
		ShutdownGracePeriod:  section.GetDuration("shutdown_grace_period", defaultShutdownGracePeriod),
		EnableRequestLogging: section.GetBool("enable_request_logging", true),
		RateLimitRPS:         limit.GetFloat("rps", defaultRateLimitRPS),
		RateLimitBurst:       limit.GetInt("burst", defaultRateLimitBurst),
	}
}

// Addr returns the listen address in host:port form.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}
