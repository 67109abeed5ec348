package config

import (
	"os"
	"strings"
	"time"

	"github.com/owaiken/gateway/internal/settings"
)

const (
	EnvSecretBoxKey   = "SECRET_BOX_KEY"
	EnvAllowedOrigins = "ALLOWED_ORIGINS"
)

// ServerConfig holds listener and browser-facing settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed-origins"`
	SecretBoxKey    string        `yaml:"secret-box-key"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// LoadServerConfig loads listener settings from the YAML config file and environment.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	// fileConfig maps the YAML fields needed for server settings.
	type fileConfig struct {
		Server ServerConfig `yaml:"server"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return ServerConfig{}, errRead
	}
	result := cfg.Server

	overrideFromEnv(&result.SecretBoxKey, EnvSecretBoxKey)
	if raw := strings.TrimSpace(os.Getenv(EnvAllowedOrigins)); raw != "" {
		result.AllowedOrigins = trimAll(strings.Split(raw, ","))
	}
	if result.ShutdownTimeout <= 0 {
		result.ShutdownTimeout = settings.DefaultShutdownTimeout
	}
	return result, nil
}
