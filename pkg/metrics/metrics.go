package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersvc", Name: "rate_limit_allowed_total", Help: "Number of admitted requests by limiter backend and route."},
		[]string{"limiter", "route"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersvc", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter backend and route."},
		[]string{"limiter", "route"},
	)
	TokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersvc", Name: "tokens_issued_total", Help: "Number of signed tokens by class (access|refresh)."},
		[]string{"class"},
	)
	Rotations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "usersvc", Name: "refresh_rotations_total", Help: "Refresh rotations by outcome."},
		[]string{"outcome"},
	)
	AuthRejected = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "usersvc", Name: "auth_rejected_total", Help: "Requests rejected by the authentication gate."},
	)
	MediaBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: "usersvc", Name: "media_breaker_state", Help: "Media storage circuit breaker state (0 closed, 1 half-open, 2 open)."},
		[]string{"name"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(TokensIssued)
	reg.MustRegister(Rotations)
	reg.MustRegister(AuthRejected)
	reg.MustRegister(MediaBreakerState)
}
