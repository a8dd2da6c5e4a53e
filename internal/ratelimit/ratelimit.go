// Package ratelimit implements fixed-window request admission with an
// in-process backend and a shared Redis backend.
package ratelimit

import (
	"context"
	"time"

	"github.com/tubeline/user-service/pkg/apperr"
)

// ErrRateLimited is returned to callers when a request is not admitted.
var ErrRateLimited = apperr.RateLimited("Too many requests, please try again later")

// Limiter admits or rejects one request for key. An error means the backend
// could not be consulted; the request is then neither admitted nor counted.
type Limiter interface {
	Admit(ctx context.Context, key string) (bool, error)
}

// Policy is the per-route configuration: at most Max admitted requests per
// key within each Window.
type Policy struct {
	Max    int
	Window time.Duration
}

func (p Policy) normalize() Policy {
	if p.Max <= 0 {
		p.Max = 1
	}
	if p.Window <= 0 {
		p.Window = time.Minute
	}
	return p
}

// Backend names the store behind l for logs and metrics.
func Backend(l Limiter) string {
	switch l.(type) {
	case *Local:
		return "memory"
	case *Shared:
		return "redis"
	}
	return "custom"
}

// RetryAfter returns how long a rejected caller should wait, when the
// limiter can tell.
func RetryAfter(l Limiter, key string) time.Duration {
	if r, ok := l.(interface{ RetryAfter(string) time.Duration }); ok {
		return r.RetryAfter(key)
	}
	return 0
}

// Factory builds one limiter per route on the configured backend.
type Factory struct {
	counter Counter
}

// NewFactory returns a factory for the shared backend when counter is
// non-nil and for the local backend otherwise.
func NewFactory(counter Counter) *Factory {
	return &Factory{counter: counter}
}

func (f *Factory) For(route string, p Policy) Limiter {
	if f.counter == nil {
		return NewLocal(p)
	}
	return NewShared(f.counter, "rl:"+route+":", p)
}
