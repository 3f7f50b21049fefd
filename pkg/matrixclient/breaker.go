package matrixclient

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// CircuitBreaker short-circuits probe traffic to an endpoint that keeps
// failing, so a dead homeserver is reported quickly instead of burning the
// full retry budget on every call.
type CircuitBreaker interface {
	Execute(fn func() error) error
}

// passThrough is used when breaking is disabled: every call goes out.
type passThrough struct{}

func (passThrough) Execute(fn func() error) error {
	return fn()
}

func NoopBreaker() CircuitBreaker {
	return passThrough{}
}

type probeBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func (b *probeBreaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err
}

// NewGobreaker builds a breaker tuned for readiness probing. A probe targets
// a single endpoint, so the trip signal is a run of consecutive failures
// rather than a failure ratio over mixed traffic, and a probe abandoned by
// its caller never counts against the endpoint.
func NewGobreaker(cfg Config) CircuitBreaker {
	settings := gobreaker.Settings{
		Name: "homeserver-probe",

		MaxRequests: uint32(cfg.CBHalfOpenMaxSuccess),

		Interval: cfg.CBSamplingDuration,
		Timeout:  cfg.CBRecoveryTime,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CBFailureThreshold)
		},

		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &probeBreaker{
		cb: gobreaker.NewCircuitBreaker(settings),
	}
}

func NewCircuitBreaker(cfg Config) CircuitBreaker {
	if !cfg.CircuitBreakerEnabled {
		return NoopBreaker()
	}
	return NewGobreaker(cfg)
}
