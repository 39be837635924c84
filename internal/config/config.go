package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                    int    `env:"PORT" envDefault:"8080"`
	DatabaseURL             string `env:"DATABASE_URL,required"`
	RedisURL                string `env:"REDIS_URL,required"`
	AllowedOrigins          string `env:"ALLOWED_ORIGINS" envDefault:""`
	SessionIdleTTLSeconds   int    `env:"SESSION_IDLE_TTL_SECONDS" envDefault:"1800"`
	SweepIntervalSeconds    int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"300"`
	HistoryRetentionSeconds int    `env:"HISTORY_RETENTION_SECONDS" envDefault:"604800"`
	WSRateLimitPerMin       int    `env:"WS_RATE_LIMIT_PER_MIN" envDefault:"30"`
	LogLevel                string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// HistoryRetention is how long closed-session and connection rows are kept
// before the sweep prunes them. Zero or negative disables pruning.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Origins splits ALLOWED_ORIGINS into a trimmed list. An empty list means
// the websocket upgrader accepts any origin.
func (c *Config) Origins() []string {
	if strings.TrimSpace(c.AllowedOrigins) == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func (c *Config) Validate(isProduction bool) error {
	if c.SessionIdleTTLSeconds < 0 {
		return fmt.Errorf("SESSION_IDLE_TTL_SECONDS must not be negative")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}

	if isProduction {
		if len(c.Origins()) == 0 {
			log.Warn().Msg("ALLOWED_ORIGINS is empty in production: websocket upgrades accepted from any origin")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
