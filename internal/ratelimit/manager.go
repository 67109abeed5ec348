package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/owaiken/gateway/internal/settings"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisBreakerDuration is how long the manager stays on the memory limiter after a Redis failure.
const redisBreakerDuration = 30 * time.Second

// SettingsProvider supplies the latest settings snapshot.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisTarget struct {
	addr     string
	password string
	prefix   string
	db       int
}

// Manager enforces burst limits on Redis when configured and falls back to process memory.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	fallback       Limiter
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redis        *RedisLimiter
	redisTarget  redisTarget
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = StaticSettings(SettingsConfig{RedisPrefix: settings.DefaultRateLimitRedisPrefix})
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		fallback:       NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// Enabled reports whether a positive limit is configured.
func (m *Manager) Enabled() bool {
	return m != nil && m.provider().Limit > 0
}

// AllowAccount applies the configured per-second limit to one account and action.
func (m *Manager) AllowAccount(ctx context.Context, accountID uint64, action string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	return m.Allow(ctx, KeyForAccount(accountID, action), m.provider().Limit)
}

// Allow checks key against limit on the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.nowFn()
	cfg := m.provider()

	if cfg.RedisEnabled && !m.breakerOpen(now) {
		result, errRedis := m.allowRedis(ctx, key, limit, now, cfg)
		if errRedis == nil {
			return result, nil
		}
		m.tripBreaker(errRedis, now)
	}
	return m.fallback.Allow(ctx, key, limit, now)
}

// Close releases the Redis client, if one was opened.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		return nil
	}
	errClose := m.redis.client.Close()
	m.redis = nil
	return errClose
}

func (m *Manager) allowRedis(ctx context.Context, key string, limit int, now time.Time, cfg SettingsConfig) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	limiter, errConnect := m.connect(ctx, cfg)
	if errConnect != nil {
		return Result{}, errConnect
	}
	return limiter.Allow(ctx, key, limit, now)
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) tripBreaker(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, falling back to memory")
}

// connect returns a Redis limiter for cfg, reconnecting when the target changed.
func (m *Manager) connect(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	target := redisTarget{
		addr:     cfg.RedisAddr,
		password: cfg.RedisPassword,
		prefix:   cfg.RedisPrefix,
		db:       max(cfg.RedisDB, 0),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.redis != nil && m.redisTarget == target {
		return m.redis, nil
	}
	if m.redis != nil {
		_ = m.redis.client.Close()
		m.redis = nil
	}

	client := m.newRedisClient(&redis.Options{
		Addr:     target.addr,
		Password: target.password,
		DB:       target.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redis = NewRedisLimiter(client, target.prefix)
	m.redisTarget = target
	return m.redis, nil
}
