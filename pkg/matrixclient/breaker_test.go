package matrixclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_DisabledPassesThrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CircuitBreakerEnabled = false
	b := NewCircuitBreaker(cfg)

	down := errors.New("endpoint down")
	calls := 0
	for i := 0; i < 20; i++ {
		err := b.Execute(func() error {
			calls++
			return down
		})
		require.ErrorIs(t, err, down)
	}
	assert.Equal(t, 20, calls)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CBFailureThreshold = 3
	cfg.CBRecoveryTime = time.Minute
	b := NewCircuitBreaker(cfg)

	down := errors.New("endpoint down")
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, b.Execute(func() error { return down }), down)
	}

	calls := 0
	err := b.Execute(func() error {
		calls++
		return nil
	})
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Zero(t, calls, "open breaker must not reach the endpoint")
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CBFailureThreshold = 3
	b := NewCircuitBreaker(cfg)

	down := errors.New("endpoint down")
	require.ErrorIs(t, b.Execute(func() error { return down }), down)
	require.ErrorIs(t, b.Execute(func() error { return down }), down)
	require.NoError(t, b.Execute(func() error { return nil }))

	require.ErrorIs(t, b.Execute(func() error { return down }), down)
	require.ErrorIs(t, b.Execute(func() error { return down }), down)
	require.NoError(t, b.Execute(func() error { return nil }))
}

func TestCircuitBreaker_CancelledProbeDoesNotTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CBFailureThreshold = 2
	b := NewCircuitBreaker(cfg)

	for i := 0; i < 10; i++ {
		err := b.Execute(func() error { return context.Canceled })
		require.ErrorIs(t, err, context.Canceled)
	}
	require.NoError(t, b.Execute(func() error { return nil }))
}
