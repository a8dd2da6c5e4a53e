package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newLocalWithClock(p Policy) (*Local, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLocal(p)
	l.now = clk.Now
	return l, clk
}

func TestLocal_RejectsAfterMaxAndResetsAfterWindow(t *testing.T) {
	l, clk := newLocalWithClock(Policy{Max: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Admit(ctx, "login:10.0.0.1")
		require.NoError(t, err)
		require.True(t, ok, "request %d", i+1)
	}
	ok, _ := l.Admit(ctx, "login:10.0.0.1")
	require.False(t, ok)
	require.Equal(t, time.Minute, l.RetryAfter("login:10.0.0.1"))

	// other keys are unaffected
	ok, _ = l.Admit(ctx, "login:10.0.0.2")
	require.True(t, ok)

	clk.Advance(time.Minute)
	ok, _ = l.Admit(ctx, "login:10.0.0.1")
	require.True(t, ok)
}

func TestLocal_SweepDropsExpiredWindows(t *testing.T) {
	l, clk := newLocalWithClock(Policy{Max: 1, Window: 10 * time.Second})
	ctx := context.Background()

	_, _ = l.Admit(ctx, "a")
	clk.Advance(5 * time.Second)
	_, _ = l.Admit(ctx, "b")
	require.Equal(t, 2, l.size())

	clk.Advance(6 * time.Second)
	require.Equal(t, 1, l.Sweep())
	require.Equal(t, 1, l.size())
	require.Equal(t, time.Duration(0), l.RetryAfter("a"))
}

func TestLocal_ConcurrentAdmitsExactlyMax(t *testing.T) {
	l := NewLocal(Policy{Max: 50, Window: time.Minute})
	require.Equal(t, 50, admitConcurrently(t, l, 100))
}

// memCounter is a Counter double with the same atomic semantics as the
// Redis script.
type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	calls  int
	fail   error
}

func (m *memCounter) IncrementWindow(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail != nil {
		return 0, m.fail
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func TestShared_ConcurrentAdmitsExactlyMaxWithCounterDouble(t *testing.T) {
	c := &memCounter{}
	s := NewShared(c, "", Policy{Max: 50, Window: time.Minute})
	require.Equal(t, 50, admitConcurrently(t, s, 100))
	require.Equal(t, 100, c.calls)
}

func TestShared_CounterErrorIsReturned(t *testing.T) {
	boom := errors.New("connection refused")
	s := NewShared(&memCounter{fail: boom}, "", Policy{Max: 5, Window: time.Minute})
	ok, err := s.Admit(context.Background(), "k")
	require.ErrorIs(t, err, boom)
	require.False(t, ok)
}

func TestRedisCounter_ConcurrentAdmitsExactlyMax(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	s := NewShared(NewRedisCounter(client), "rl:test:", Policy{Max: 50, Window: time.Minute})
	require.Equal(t, 50, admitConcurrently(t, s, 100))
	require.Equal(t, "100", mustGet(t, m, "rl:test:client"))
}

func TestRedisCounter_ExpiryArmedOnFirstHitOnly(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	c := NewRedisCounter(client)
	ctx := context.Background()

	n, err := c.IncrementWindow(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	m.FastForward(6 * time.Second)
	n, err = c.IncrementWindow(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, 4*time.Second, m.TTL("k"))

	m.FastForward(5 * time.Second)
	require.False(t, m.Exists("k"))
	n, err = c.IncrementWindow(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestShared_RejectsAfterMaxAndResetsAfterWindow(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	s := NewShared(NewRedisCounter(client), "", Policy{Max: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := s.Admit(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.Admit(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, ok)

	m.FastForward(time.Minute)
	ok, err = s.Admit(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestFactory_SelectsBackend(t *testing.T) {
	local := NewFactory(nil).For("login", Policy{Max: 10, Window: time.Minute})
	require.Equal(t, "memory", Backend(local))

	shared := NewFactory(&memCounter{}).For("login", Policy{Max: 10, Window: time.Minute})
	require.Equal(t, "redis", Backend(shared))
	require.Equal(t, time.Minute, RetryAfter(shared, "x"))
}

func admitConcurrently(t *testing.T, l Limiter, n int) int {
	t.Helper()
	var admitted int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := l.Admit(context.Background(), "client")
			if err == nil && ok {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	return int(admitted)
}

func mustGet(t *testing.T, m *mr.Miniredis, key string) string {
	t.Helper()
	v, err := m.Get(key)
	require.NoError(t, err)
	return v
}
