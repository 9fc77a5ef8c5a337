package resilience

import (
	goerrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = goerrors.New("upstream failed")

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
	})

	for i := 0; i < 3; i++ {
		err := cb.Call(func() error { return errUpstream })
		assert.Equal(t, errUpstream, err)
	}
	assert.Equal(t, StateOpen, cb.State())

	// Open circuit fails fast without invoking the function.
	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)

	var cbErr *CircuitBreakerError
	require.True(t, goerrors.As(err, &cbErr))
	assert.Equal(t, StateOpen, cbErr.State)
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3})

	require.Error(t, cb.Call(func() error { return errUpstream }))
	require.Error(t, cb.Call(func() error { return errUpstream }))
	require.NoError(t, cb.Call(func() error { return nil }))

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	require.Error(t, cb.Call(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
	})

	require.Error(t, cb.Call(func() error { return errUpstream }))
	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Call(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1})
	require.Error(t, cb.Call(func() error { return errUpstream }))
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}

func TestCircuitBreakerRegistry(t *testing.T) {
	registry := NewCircuitBreakerRegistry()

	first := registry.GetOrCreate("openalex-api", CircuitBreakerConfig{})
	second := registry.GetOrCreate("openalex-api", CircuitBreakerConfig{})
	assert.Same(t, first, second)

	other := registry.GetOrCreate("ror-api", CircuitBreakerConfig{})
	assert.NotSame(t, first, other)

	stats := registry.GetStats()
	assert.Len(t, stats, 2)
	assert.Contains(t, stats, "openalex-api")
	assert.Contains(t, stats, "ror-api")
}
