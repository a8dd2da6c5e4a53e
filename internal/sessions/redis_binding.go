package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// swapScript replaces the stored token only when it still equals ARGV[1].
var swapScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
  return 1
end
return 0
`)

// RedisBinding implements Binding with Redis as the backing store.
// The refresh token lives under key "<prefix><subjectID>" with TTL equal to the
// refresh token lifetime, so abandoned sessions disappear on their own.
type RedisBinding struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisBinding creates a Redis session binding. Prefix may be empty.
func NewRedisBinding(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisBinding {
	if prefix == "" {
		prefix = "session:"
	}
	return &RedisBinding{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisBinding) key(subjectID string) string {
	return r.prefix + subjectID
}

func (r *RedisBinding) RefreshToken(ctx context.Context, subjectID string) (string, error) {
	v, err := r.client.Get(ctx, r.key(subjectID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return v, nil
}

func (r *RedisBinding) SetRefreshToken(ctx context.Context, subjectID, token string) error {
	return r.client.Set(ctx, r.key(subjectID), token, r.ttl).Err()
}

func (r *RedisBinding) SwapRefreshToken(ctx context.Context, subjectID, expected, next string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	n, err := swapScript.Run(ctx, r.client, []string{r.key(subjectID)}, expected, next, r.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisBinding) ClearRefreshToken(ctx context.Context, subjectID string) error {
	return r.client.Del(ctx, r.key(subjectID)).Err()
}
