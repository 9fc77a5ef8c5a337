package resilience

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ConnectionPool hands out HTTP clients that share one tuned transport,
// bounded so a burst of discovery traffic cannot open unbounded sockets
// against the polite pools. Every request goes through the pool's
// circuit breaker.
type ConnectionPool struct {
	maxIdle     int
	maxActive   int
	idleTimeout time.Duration

	breaker *CircuitBreaker

	mu     sync.RWMutex
	active int
	idle   []*pooledClient

	transport *http.Transport
}

type pooledClient struct {
	client   *http.Client
	lastUsed time.Time
}

// NewConnectionPool creates a pool sized for one upstream provider.
func NewConnectionPool(maxIdle, maxActive int, idleTimeout time.Duration, cb *CircuitBreaker) *ConnectionPool {
	return &ConnectionPool{
		maxIdle:     maxIdle,
		maxActive:   maxActive,
		idleTimeout: idleTimeout,
		breaker:     cb,
		idle:        make([]*pooledClient, 0, maxIdle),
		transport: &http.Transport{
			MaxIdleConns:          maxIdle,
			MaxConnsPerHost:       maxActive,
			MaxIdleConnsPerHost:   maxIdle / 2,
			IdleConnTimeout:       idleTimeout,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

// GetClient returns an HTTP client from the pool, creating one if no
// idle client is available and the active cap allows it.
func (cp *ConnectionPool) GetClient() (*http.Client, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	cp.evictStale()

	if n := len(cp.idle); n > 0 {
		entry := cp.idle[0]
		cp.idle = cp.idle[1:]
		entry.lastUsed = time.Now()
		return entry.client, nil
	}

	if cp.active >= cp.maxActive {
		return nil, fmt.Errorf("connection pool exhausted: %d/%d active connections", cp.active, cp.maxActive)
	}
	cp.active++

	return &http.Client{
		Transport: cp.transport,
		Timeout:   30 * time.Second,
	}, nil
}

// ReturnClient puts a client back into the idle set. Clients returned
// past the idle cap are simply discarded; the shared transport keeps
// connection reuse working either way.
func (cp *ConnectionPool) ReturnClient(client *http.Client) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	for _, entry := range cp.idle {
		if entry.client == client {
			entry.lastUsed = time.Now()
			return
		}
	}

	if len(cp.idle) < cp.maxIdle {
		cp.idle = append(cp.idle, &pooledClient{client: client, lastUsed: time.Now()})
		return
	}
	// Discarded clients give their slot back.
	cp.active--
}

// evictStale drops idle clients past the idle timeout and releases
// their slots. Caller holds mu.
func (cp *ConnectionPool) evictStale() {
	cutoff := time.Now().Add(-cp.idleTimeout)
	kept := cp.idle[:0]
	for _, entry := range cp.idle {
		if entry.lastUsed.After(cutoff) {
			kept = append(kept, entry)
		} else {
			cp.active--
		}
	}
	cp.idle = kept
}

// GetStats returns pool statistics for the /pools endpoints.
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	cp.mu.RLock()
	defer cp.mu.RUnlock()

	return map[string]interface{}{
		"active_connections":    cp.active,
		"idle_connections":      len(cp.idle),
		"max_idle":              cp.maxIdle,
		"max_active":            cp.maxActive,
		"idle_timeout_ms":       cp.idleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.breaker.State(),
	}
}

// DoRequest performs a GET-style request through the pool and circuit
// breaker. The caller owns the response body on success.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string) (*http.Response, error) {
	var resp *http.Response

	err := cp.breaker.Call(func() error {
		client, err := cp.GetClient()
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			cp.ReturnClient(client)
			return err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		start := time.Now()
		resp, err = client.Do(req)
		// The client goes back either way; a failed dial does not
		// poison it, and holding its slot would bleed the pool dry
		// during an outage.
		cp.ReturnClient(client)
		if err != nil {
			slog.Warn("Upstream request failed",
				"url", url,
				"error", err,
				"duration_ms", time.Since(start).Milliseconds())
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close releases idle clients and resets the counters.
func (cp *ConnectionPool) Close() error {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	cp.transport.CloseIdleConnections()
	cp.idle = nil
	cp.active = 0
	return nil
}
