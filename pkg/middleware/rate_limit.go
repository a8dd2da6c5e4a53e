package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tubeline/user-service/internal/ratelimit"
	"github.com/tubeline/user-service/pkg/apperr"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/metrics"
	"github.com/tubeline/user-service/pkg/response"
	"golang.org/x/time/rate"
)

// rejections are logged at most once per second across all routes
var rejectLog = rate.Sometimes{Interval: time.Second}

// RateLimit returns a Gin middleware admitting requests through lim.
// Counters are keyed by route name and client IP, so each route keeps its
// own allowance. A backend failure answers 500 and the request is not counted.
func RateLimit(route string, lim ratelimit.Limiter) gin.HandlerFunc {
	backend := ratelimit.Backend(lim)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		key := route + ":" + ip

		ok, err := lim.Admit(c.Request.Context(), key)
		if err != nil {
			response.Fail(c, apperr.Wrap(apperr.KindInternal, "rate limit check failed", err))
			return
		}
		if !ok {
			metrics.RateLimitRejected.WithLabelValues(backend, route).Inc()
			if d := ratelimit.RetryAfter(lim, key); d > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
			}
			rejectLog.Do(func() {
				logger.WithFields(logger.Fields{"route": route, "ip": ip, "limiter": backend}).Warn("rate limit exceeded")
			})
			response.Fail(c, ratelimit.ErrRateLimited)
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(backend, route).Inc()
		c.Next()
	}
}
