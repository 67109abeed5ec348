package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTPublicKey = "JWT_PUBLIC_KEY"
	EnvJWTIssuer    = "JWT_ISSUER"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// readConfigFile unmarshals the YAML config into out. A missing file is not an error.
func readConfigFile(configPath string, out any) error {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, out); errUnmarshal != nil {
		return fmt.Errorf("parse config file: %w", errUnmarshal)
	}
	return nil
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// IdentityConfig holds the settings used to verify auth provider tokens.
type IdentityConfig struct {
	Secret    string        `yaml:"secret"`
	PublicKey string        `yaml:"public-key"`
	Issuer    string        `yaml:"issuer"`
	Leeway    time.Duration `yaml:"leeway"`
}

// ErrMissingIdentityKey indicates neither a shared secret nor a public key is configured.
var ErrMissingIdentityKey = errors.New("missing identity verification key (set `jwt.secret` or `jwt.public-key`)")

// defaultJWTLeeway tolerates small clock drift against the auth provider.
const defaultJWTLeeway = 30 * time.Second

// LoadIdentityConfig loads token verification settings from the YAML config file.
func LoadIdentityConfig(configPath string) (IdentityConfig, error) {
	// fileConfig maps the YAML fields needed for identity settings.
	type fileConfig struct {
		JWT IdentityConfig `yaml:"jwt"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return IdentityConfig{}, errRead
	}
	result := cfg.JWT

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if publicKey := strings.TrimSpace(os.Getenv(EnvJWTPublicKey)); publicKey != "" {
		result.PublicKey = publicKey
	}
	if issuer := strings.TrimSpace(os.Getenv(EnvJWTIssuer)); issuer != "" {
		result.Issuer = issuer
	}
	if result.Leeway <= 0 {
		result.Leeway = defaultJWTLeeway
	}
	if strings.TrimSpace(result.Secret) == "" && strings.TrimSpace(result.PublicKey) == "" {
		return IdentityConfig{}, ErrMissingIdentityKey
	}
	return result, nil
}
