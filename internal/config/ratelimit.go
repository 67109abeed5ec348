package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/owaiken/gateway/internal/settings"
)

const (
	EnvRateLimit            = "RATE_LIMIT"
	EnvRateLimitRedisAddr   = "RATE_LIMIT_REDIS_ADDR"
	EnvRateLimitRedisPass   = "RATE_LIMIT_REDIS_PASSWORD"
	EnvRateLimitRedisPrefix = "RATE_LIMIT_REDIS_PREFIX"
)

// RateLimitConfig holds the per-account burst limiter settings.
type RateLimitConfig struct {
	Limit         int    `yaml:"limit"`
	RedisEnabled  bool   `yaml:"redis-enabled"`
	RedisAddr     string `yaml:"redis-addr"`
	RedisPassword string `yaml:"redis-password"`
	RedisDB       int    `yaml:"redis-db"`
	RedisPrefix   string `yaml:"redis-prefix"`
}

// LoadRateLimitConfig loads burst limiter settings from the YAML config file and environment.
func LoadRateLimitConfig(configPath string) (RateLimitConfig, error) {
	// fileConfig maps the YAML fields needed for rate limit settings.
	type fileConfig struct {
		RateLimit RateLimitConfig `yaml:"rate-limit"`
	}

	cfg := fileConfig{RateLimit: RateLimitConfig{
		Limit:       settings.DefaultRateLimit,
		RedisPrefix: settings.DefaultRateLimitRedisPrefix,
	}}
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return RateLimitConfig{}, errRead
	}
	result := cfg.RateLimit

	if raw := strings.TrimSpace(os.Getenv(EnvRateLimit)); raw != "" {
		if limit, errParse := strconv.Atoi(raw); errParse == nil {
			result.Limit = limit
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRateLimitRedisAddr)); addr != "" {
		result.RedisAddr = addr
		result.RedisEnabled = true
	}
	overrideFromEnv(&result.RedisPassword, EnvRateLimitRedisPass)
	overrideFromEnv(&result.RedisPrefix, EnvRateLimitRedisPrefix)

	result.RedisAddr = strings.TrimSpace(result.RedisAddr)
	result.RedisPrefix = strings.TrimSpace(result.RedisPrefix)
	if result.RedisPrefix == "" {
		result.RedisPrefix = settings.DefaultRateLimitRedisPrefix
	}
	if result.RedisDB < 0 {
		result.RedisDB = 0
	}
	if result.Limit < 0 {
		result.Limit = 0
	}
	return result, nil
}
