package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubeline/user-service/internal/ratelimit"
	"github.com/tubeline/user-service/pkg/middleware"
)

// RouteLimits hands out one limiter per route name, so path aliases of the
// same route share an allowance.
type RouteLimits struct {
	factory *ratelimit.Factory
	policy  func(route string) ratelimit.Policy

	mu      sync.Mutex
	byRoute map[string]ratelimit.Limiter
}

func NewRouteLimits(f *ratelimit.Factory, policy func(route string) ratelimit.Policy) *RouteLimits {
	return &RouteLimits{factory: f, policy: policy, byRoute: make(map[string]ratelimit.Limiter)}
}

func (r *RouteLimits) limiter(route string) ratelimit.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.byRoute[route]; ok {
		return l
	}
	l := r.factory.For(route, r.policy(route))
	r.byRoute[route] = l
	return l
}

// Middleware satisfies Limiter.
func (r *RouteLimits) Middleware(route string) gin.HandlerFunc {
	return middleware.RateLimit(route, r.limiter(route))
}

// StartSweepers evicts expired windows of the in-process limiters until ctx
// ends. Shared limiters expire in Redis and are skipped.
func (r *RouteLimits) StartSweepers(ctx context.Context, interval time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, l := range r.byRoute {
		if local, ok := l.(*ratelimit.Local); ok {
			local.StartSweeper(ctx, interval)
			n++
		}
	}
	return n
}
