package resilience

import (
	"context"
	goerrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchbridge/backend/internal/errors"
)

func quickRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialDelay:    time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2.0,
		RetryableErrors: func(err error) bool { return errors.IsRetryableError(err) },
	}
}

func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	var calls int32
	err := RetryWithConfig(context.Background(), quickRetryConfig(3), func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.NewNetworkError("openalex", goerrors.New("connection refused"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	var calls int32
	notFound := errors.NewNotFoundError("author")

	err := RetryWithConfig(context.Background(), quickRetryConfig(3), func() error {
		atomic.AddInt32(&calls, 1)
		return notFound
	})

	assert.Equal(t, notFound, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRetryExhaustsAttempts(t *testing.T) {
	var calls int32
	err := RetryWithConfig(context.Background(), quickRetryConfig(3), func() error {
		atomic.AddInt32(&calls, 1)
		return errors.NewTimeoutError("ror search", nil)
	})

	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithConfig(ctx, quickRetryConfig(3), func() error {
		return errors.NewNetworkError("openalex", nil)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryHTTPRetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	resp, err := RetryHTTP(context.Background(), quickRetryConfig(3), func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestRetryHTTPReturnsClientErrorsImmediately(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := RetryHTTP(context.Background(), quickRetryConfig(3), func() (*http.Response, error) {
		return http.Get(srv.URL)
	})
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	config := RetryConfig{
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      time.Second,
		BackoffFactor: 2.0,
	}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(config, 0))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(config, 2))
	assert.Equal(t, time.Second, calculateDelay(config, 10))
}

func TestRetryManagerPolicies(t *testing.T) {
	rm := NewRetryManager()
	rm.RegisterPolicy("ror-api", SlowRetryPolicy)

	assert.Equal(t, "slow", rm.GetPolicy("ror-api").Name)
	assert.Equal(t, "standard", rm.GetPolicy("unknown").Name)
}
