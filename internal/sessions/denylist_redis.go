package sessions

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records access tokens that were logged out before expiry, keyed by
// their jti. A nil *Denylist is valid and never denies anything, which is how
// deployments without Redis run.
type Denylist struct {
	client redis.UniversalClient
	prefix string
}

// NewDenylist returns a Redis-backed denylist; a nil client yields nil.
func NewDenylist(client redis.UniversalClient) *Denylist {
	if client == nil {
		return nil
	}
	return &Denylist{client: client, prefix: "denylist:access:"}
}

// Deny stores the token id until ttl elapses. Non-positive ttls are ignored
// since the token has already expired.
func (d *Denylist) Deny(ctx context.Context, tokenID string, ttl time.Duration) error {
	if d == nil || tokenID == "" || ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.prefix+tokenID, "1", ttl).Err()
}

// IsDenied reports whether the token id was denied and has not yet expired.
func (d *Denylist) IsDenied(ctx context.Context, tokenID string) (bool, error) {
	if d == nil || tokenID == "" {
		return false, nil
	}
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
