package sessions

import (
	"context"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestDenylist_DenyAndExpire(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	d := NewDenylist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	ctx := context.Background()

	require.NoError(t, d.Deny(ctx, "jti-1", 2*time.Second))

	ok, err := d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	require.True(t, ok)

	m.FastForward(3 * time.Second)

	ok, err = d.IsDenied(ctx, "jti-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDenylist_NilIsNoop(t *testing.T) {
	d := NewDenylist(nil)
	require.Nil(t, d)

	ctx := context.Background()
	require.NoError(t, d.Deny(ctx, "jti-2", time.Second))
	ok, err := d.IsDenied(ctx, "jti-2")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDenylist_ExpiredTokenIgnored(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	d := NewDenylist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	require.NoError(t, d.Deny(context.Background(), "jti-3", -time.Second))
	require.Empty(t, m.Keys())
}
