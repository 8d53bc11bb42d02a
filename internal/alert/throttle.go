package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle suppresses repeat alerts for a rule inside its cooldown window.
type Throttle interface {
	// Allow reports whether the rule may fire now and, when it may, opens
	// a cooldown window of the given duration.
	Allow(ctx context.Context, rule string, cooldown time.Duration) (bool, error)
}

// RedisThrottle implements cooldowns with SET NX EX, so the window survives
// restarts and is shared between worker and server processes.
type RedisThrottle struct {
	client *redis.Client
}

// NewRedisThrottle creates a redis-backed throttle.
func NewRedisThrottle(client *redis.Client) *RedisThrottle {
	return &RedisThrottle{client: client}
}

// Allow implements Throttle.
func (t *RedisThrottle) Allow(ctx context.Context, rule string, cooldown time.Duration) (bool, error) {
	if cooldown <= 0 {
		return true, nil
	}
	key := fmt.Sprintf("alert:throttle:%s", rule)
	ok, err := t.client.SetNX(ctx, key, "1", cooldown).Result()
	if err != nil {
		return false, fmt.Errorf("alert throttle: %w", err)
	}
	return ok, nil
}

// NopThrottle never suppresses. Used when redis is not configured and in
// tests that exercise rule matching.
type NopThrottle struct{}

// Allow implements Throttle.
func (NopThrottle) Allow(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
