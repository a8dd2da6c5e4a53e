package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is the store behind the shared backend. IncrementWindow must
// atomically increment key and, when the result is 1, set its expiry to
// window. It returns the post-increment count.
type Counter interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Shared admits requests against a counter visible to every server process.
type Shared struct {
	counter Counter
	prefix  string
	policy  Policy
}

func NewShared(c Counter, prefix string, p Policy) *Shared {
	if prefix == "" {
		prefix = "rl:"
	}
	return &Shared{counter: c, prefix: prefix, policy: p.normalize()}
}

func (s *Shared) Admit(ctx context.Context, key string) (bool, error) {
	n, err := s.counter.IncrementWindow(ctx, s.prefix+key, s.policy.Window)
	if err != nil {
		return false, err
	}
	return n <= int64(s.policy.Max), nil
}

// RetryAfter reports the full window; the shared store is not queried.
func (s *Shared) RetryAfter(string) time.Duration { return s.policy.Window }

// incrScript increments KEYS[1] and arms its expiry only on the first hit,
// so a busy key cannot extend its own window.
var incrScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// RedisCounter implements Counter with a single Lua script.
type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrScript.Run(ctx, r.client, []string{key}, window.Milliseconds()).Int64()
}
