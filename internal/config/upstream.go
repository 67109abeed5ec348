package config

import (
	"os"
	"strings"
	"time"
)

const (
	EnvOpenRouterAPIKey = "OPENROUTER_API_KEY"
	EnvOpenRouterURL    = "OPENROUTER_URL"
	EnvN8nAPIKey        = "N8N_API_KEY"
	EnvN8nBaseURL       = "N8N_BASE_URL"
	EnvPublicBaseURL    = "PUBLIC_BASE_URL"
)

const (
	defaultChatCompletionsURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultAutomationBaseURL  = "http://localhost:5678"
	defaultUpstreamTimeout    = 60 * time.Second
)

// UpstreamConfig holds the managed downstream endpoints and their shared credentials.
type UpstreamConfig struct {
	ChatURL           string        `yaml:"chat-url"`
	ChatAPIKey        string        `yaml:"chat-api-key"`
	AutomationBaseURL string        `yaml:"automation-base-url"`
	AutomationAPIKey  string        `yaml:"automation-api-key"`
	PublicBaseURL     string        `yaml:"public-base-url"`
	SiteName          string        `yaml:"site-name"`
	Timeout           time.Duration `yaml:"timeout"`
}

// LoadUpstreamConfig loads downstream endpoints from the YAML config file and environment.
func LoadUpstreamConfig(configPath string) (UpstreamConfig, error) {
	// fileConfig maps the YAML fields needed for upstream settings.
	type fileConfig struct {
		Upstream UpstreamConfig `yaml:"upstream"`
	}

	var cfg fileConfig
	if errRead := readConfigFile(configPath, &cfg); errRead != nil {
		return UpstreamConfig{}, errRead
	}
	result := cfg.Upstream

	overrideFromEnv(&result.ChatAPIKey, EnvOpenRouterAPIKey)
	overrideFromEnv(&result.ChatURL, EnvOpenRouterURL)
	overrideFromEnv(&result.AutomationAPIKey, EnvN8nAPIKey)
	overrideFromEnv(&result.AutomationBaseURL, EnvN8nBaseURL)
	overrideFromEnv(&result.PublicBaseURL, EnvPublicBaseURL)

	if strings.TrimSpace(result.ChatURL) == "" {
		result.ChatURL = defaultChatCompletionsURL
	}
	if strings.TrimSpace(result.AutomationBaseURL) == "" {
		result.AutomationBaseURL = defaultAutomationBaseURL
	}
	result.AutomationBaseURL = strings.TrimRight(strings.TrimSpace(result.AutomationBaseURL), "/")
	if result.Timeout <= 0 {
		result.Timeout = defaultUpstreamTimeout
	}
	return result, nil
}

// overrideFromEnv replaces *dst with the trimmed env value when it is set.
func overrideFromEnv(dst *string, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = v
	}
}
