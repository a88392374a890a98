package errors

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func testBreaker(t *testing.T) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("test", BreakerConfig{
		FailureThreshold:  3,
		RecoveryTimeout:   50 * time.Millisecond,
		SuccessThreshold:  2,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        1 * time.Second,
		BackoffMultiplier: 2.0,
	})
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := testBreaker(t)

	// Given: a closed breaker
	require.Equal(t, StateClosed, cb.State())

	// When: failure_threshold consecutive failures
	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	// Then: the circuit is open and calls short-circuit
	assert.Equal(t, StateOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(func() error { return nil }), ErrCircuitOpen)

	// And: backoff is at least initial_backoff
	assert.GreaterOrEqual(t, cb.Backoff(), 100*time.Millisecond)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(t)

	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.Error(t, cb.Execute(func() error { return errBoom }))
	require.NoError(t, cb.Execute(func() error { return nil }))

	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := testBreaker(t)

	// Given: an open breaker
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	require.Equal(t, StateOpen, cb.State())

	// When: recovery timeout elapses
	time.Sleep(60 * time.Millisecond)

	// Then: the circuit is half-open
	require.Equal(t, StateHalfOpen, cb.State())

	// And: success_threshold successes close it again
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(t)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.ErrorIs(t, cb.Execute(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_BackoffGrowsExponentially(t *testing.T) {
	cb := testBreaker(t)

	cb.RecordFailure()
	first := cb.Backoff()
	cb.RecordFailure()
	second := cb.Backoff()

	assert.Equal(t, 100*time.Millisecond, first)
	assert.Equal(t, 200*time.Millisecond, second)

	// Backoff is capped at max_backoff.
	for i := 0; i < 10; i++ {
		cb.RecordFailure()
	}
	assert.Equal(t, 1*time.Second, cb.Backoff())
}

func TestCircuitExecute_FallbackWhenOpen(t *testing.T) {
	cb := testBreaker(t)
	for i := 0; i < 3; i++ {
		cb.RecordFailure()
	}

	called := false
	result, err := CircuitExecute(cb,
		func() (string, error) { t.Fatal("must not call primary"); return "", nil },
		func() (string, error) { called = true; return "fallback", nil },
	)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "fallback", result)
}
