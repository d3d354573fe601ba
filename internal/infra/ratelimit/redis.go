package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"eri/internal/domain"
)

const redisKeyPrefix = "eri:ratelimit:"

// incrWindow bumps the counter and starts the window on the first hit. It
// returns the count and the remaining window in milliseconds.
var incrWindow = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Now      func() time.Time
}

// RedisLimiter shares fixed windows between service replicas.
type RedisLimiter struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisLimiter(cfg RedisConfig) (*RedisLimiter, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisLimiterWithClient(client, cfg.Now), nil
}

func NewRedisLimiterWithClient(client redis.UniversalClient, now func() time.Time) *RedisLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisLimiter{client: client, now: now}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, size time.Duration) (domain.RateLimitDecision, error) {
	if limit <= 0 {
		return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	windowMillis := size.Milliseconds()
	if windowMillis <= 0 {
		windowMillis = 1000
	}
	result, err := incrWindow.Run(ctx, r.client, []string{redisKeyPrefix + key}, windowMillis).Result()
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	current, ttlMillis, err := parseWindowReply(result)
	if err != nil {
		return domain.RateLimitDecision{}, err
	}
	resetAt := r.now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	remaining := limit - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   current <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}, nil
}

func (r *RedisLimiter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisLimiter) Close() error {
	return r.client.Close()
}

func parseWindowReply(result any) (int64, int64, error) {
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return 0, 0, errors.New("unexpected redis rate limit response")
	}
	current, ok := values[0].(int64)
	if !ok {
		return 0, 0, errors.New("invalid redis counter response")
	}
	ttl, _ := values[1].(int64)
	return current, ttl, nil
}
