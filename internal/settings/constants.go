package settings

import "time"

// Defaults shared by config loading and the HTTP layer.
const (
	// DefaultSiteName is sent as the X-Title header on chat forwards.
	DefaultSiteName = "Owaiken Chat"
	// DefaultChatModel is used when a chat request omits the model.
	DefaultChatModel = "openai/gpt-3.5-turbo"
	// DefaultChatTemperature is used when a chat request omits temperature.
	DefaultChatTemperature = 0.7
	// DefaultChatMaxTokens is used when a chat request omits max_tokens.
	DefaultChatMaxTokens = 1000
	// DefaultRateLimit is the fallback burst limit per second (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "owaiken:rl"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 15 * time.Second
	// DefaultUsageEventsLimit caps usage event listings when no limit is given.
	DefaultUsageEventsLimit = 50
	// MaxUsageEventsLimit caps usage event listings.
	MaxUsageEventsLimit = 200
)
