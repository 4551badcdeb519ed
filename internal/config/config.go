package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultListenAddr  = ":8080"
	DefaultDatabaseDSN = "file:chargerd.db"
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxChargers = 2
	DefaultLogLevel    = "info"
)

const envPrefix = "CHARGERD_"

// Config holds the runtime settings for the service, sourced from
// CHARGERD_-prefixed environment variables.
type Config struct {
	// ListenAddr is the host:port the HTTP server binds to.
	ListenAddr string

	// DatabaseDSN is the SQLite data source name.
	DatabaseDSN string

	// SessionTTL is how long an issued session token stays valid.
	SessionTTL time.Duration

	// MaxChargers caps the charger count an account may subscribe for.
	MaxChargers int

	// AllowedOrigins lists browser origins permitted by CORS. Empty
	// disables cross-origin access.
	AllowedOrigins []string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// Load reads configuration from the environment. All settings are optional;
// invalid values are collected and reported together.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		ListenAddr:  DefaultListenAddr,
		DatabaseDSN: DefaultDatabaseDSN,
		SessionTTL:  DefaultSessionTTL,
		MaxChargers: DefaultMaxChargers,
		LogLevel:    DefaultLogLevel,
	}

	var problems []string

	if v := strings.TrimSpace(getenv(envPrefix + "LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(getenv(envPrefix + "DATABASE_DSN")); v != "" {
		cfg.DatabaseDSN = v
	}

	if v := strings.TrimSpace(getenv(envPrefix + "SESSION_TTL")); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			problems = append(problems, envPrefix+"SESSION_TTL must be a positive duration such as 24h")
		} else {
			cfg.SessionTTL = ttl
		}
	}

	if v := strings.TrimSpace(getenv(envPrefix + "MAX_CHARGERS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			problems = append(problems, envPrefix+"MAX_CHARGERS must be a positive integer")
		} else {
			cfg.MaxChargers = n
		}
	}

	if v := strings.TrimSpace(getenv(envPrefix + "ALLOWED_ORIGINS")); v != "" {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if v := strings.TrimSpace(getenv(envPrefix + "LOG_LEVEL")); v != "" {
		switch strings.ToLower(v) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(v)
		default:
			problems = append(problems, envPrefix+"LOG_LEVEL must be one of debug, info, warn, error")
		}
	}

	if len(problems) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}
