package ratelimit

import (
	"strings"

	"github.com/owaiken/gateway/internal/config"
	"github.com/owaiken/gateway/internal/settings"
)

// SettingsConfig is a normalized snapshot of the burst limiter settings.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig normalizes loaded rate limit configuration.
func SettingsFromConfig(cfg config.RateLimitConfig) SettingsConfig {
	out := SettingsConfig{
		Limit:         cfg.Limit,
		RedisEnabled:  cfg.RedisEnabled,
		RedisAddr:     strings.TrimSpace(cfg.RedisAddr),
		RedisPassword: strings.TrimSpace(cfg.RedisPassword),
		RedisDB:       cfg.RedisDB,
		RedisPrefix:   strings.TrimSpace(cfg.RedisPrefix),
	}
	if out.RedisPrefix == "" {
		out.RedisPrefix = settings.DefaultRateLimitRedisPrefix
	}
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	if out.Limit < 0 {
		out.Limit = 0
	}
	if out.RedisAddr == "" {
		out.RedisEnabled = false
	}
	return out
}

// StaticSettings returns a provider that always yields cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}
