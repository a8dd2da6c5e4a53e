package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubeline/user-service/pkg/logger"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Health serves liveness and readiness endpoints.
type Health struct {
	started time.Time
	timeout time.Duration
	checks  map[string]Check
}

func NewHealth(checks map[string]Check) *Health {
	return &Health{started: time.Now(), timeout: 2 * time.Second, checks: checks}
}

func (h *Health) Register(r gin.IRoutes) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", h.ready)
}

// ready returns 200 only when every check passes.
func (h *Health) ready(c *gin.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	ready := true
	deps := make(map[string]bool, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := h.checks[name](ctx)
		cancel()
		deps[name] = err == nil
		if err != nil {
			ready = false
			logger.Warnf("readiness: %s: %v", name, err)
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "deps": deps, "uptime": time.Since(h.started).String()})
}
