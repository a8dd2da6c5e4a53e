package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tubeline/user-service/pkg/logger"
	"github.com/tubeline/user-service/pkg/metrics"
)

// BreakerSettings configures the circuit breaker around media storage.
type BreakerSettings struct {
	Name         string
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// BreakerMedia guards a Media backend with a circuit breaker. While open,
// calls fail with ErrUnavailable without reaching the backend.
type BreakerMedia struct {
	next Media
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerMedia(next Media, s BreakerSettings) *BreakerMedia {
	if s.Name == "" {
		s.Name = "media"
	}
	if s.MinRequests == 0 {
		s.MinRequests = 3
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	metrics.MediaBreakerState.WithLabelValues(s.Name).Set(float64(gobreaker.StateClosed))
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.MediaBreakerState.WithLabelValues(name).Set(float64(to))
			logger.Warnf("media breaker %s: %s -> %s", name, from, to)
		},
	})
	return &BreakerMedia{next: next, cb: cb}
}

func (b *BreakerMedia) Store(ctx context.Context, up Upload) (*Asset, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Store(ctx, up)
	})
	if err != nil {
		return nil, b.wrap(err)
	}
	return v.(*Asset), nil
}

func (b *BreakerMedia) Remove(ctx context.Context, referenceID string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Remove(ctx, referenceID)
	})
	if err != nil {
		return b.wrap(err)
	}
	return nil
}

// State exposes the breaker state for readiness reporting.
func (b *BreakerMedia) State() gobreaker.State { return b.cb.State() }

func (b *BreakerMedia) wrap(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
