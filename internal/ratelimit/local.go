package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// Local is the in-process backend. Counters live in a map guarded by a
// mutex; an expired window is replaced lazily on the next request for its key.
type Local struct {
	policy Policy

	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

func NewLocal(p Policy) *Local {
	return &Local{policy: p.normalize(), windows: make(map[string]*window), now: time.Now}
}

func (l *Local) Admit(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.policy.Window)}
		l.windows[key] = w
	}
	w.count++
	return w.count <= l.policy.Max, nil
}

// RetryAfter reports how long until key's window resets.
func (l *Local) RetryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.windows[key]
	if !ok {
		return 0
	}
	if d := w.resetAt.Sub(l.now()); d > 0 {
		return d
	}
	return 0
}

// Sweep drops every expired window and returns how many were removed.
func (l *Local) Sweep() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
			n++
		}
	}
	return n
}

// StartSweeper runs Sweep every interval until ctx is done.
func (l *Local) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = l.policy.Window
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				l.Sweep()
			}
		}
	}()
}

func (l *Local) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
