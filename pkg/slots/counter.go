package slots

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const DefaultNonceKey = "textgen:nonce"

// RedisCounter hands out nonce hints from a shared redis counter so that
// several gateway processes on one slot directory start their scans at
// different slots. The slot directory stays the source of truth, a hint
// that lands on an occupied slot is simply skipped by Submit.
type RedisCounter struct {
	client *redis.Client
	key    string
}

func NewRedisCounter(client *redis.Client, key string) *RedisCounter {
	if key == "" {
		key = DefaultNonceKey
	}
	return &RedisCounter{
		client: client,
		key:    key,
	}
}

// Next returns a nonce that no other caller of this counter has received.
func (c *RedisCounter) Next(ctx context.Context) (uint64, error) {
	n, err := c.client.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment nonce counter %s: %w", c.key, err)
	}
	if n < 1 {
		return 0, fmt.Errorf("nonce counter %s holds invalid value %d", c.key, n)
	}
	return uint64(n - 1), nil
}

func (c *RedisCounter) Close() error {
	return c.client.Close()
}
