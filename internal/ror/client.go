// Package ror queries the Research Organization Registry for institution
// identifiers used to filter OpenAlex results.
package ror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/researchbridge/backend/internal/monitoring"
	"github.com/researchbridge/backend/internal/resilience"
)

// BaseURL is the ROR API endpoint, overridable in tests
var BaseURL = "https://api.ror.org/v2"

const serviceName = "ror-api"

// maxInstitutions bounds how many ROR IDs feed into an OpenAlex filter
const maxInstitutions = 10

// Client queries the ROR API
type Client struct {
	pool *resilience.ConnectionPool

	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// Instrument attaches metrics and logging. Either argument may be nil.
func (c *Client) Instrument(metrics *monitoring.Metrics, logger *monitoring.Logger) {
	c.metrics = metrics
	c.logger = logger
}

// NewClient creates a ROR client with connection pooling
func NewClient() *Client {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	pool := resilience.NewConnectionPool(10, 20, 30*time.Second, cb)

	return &Client{pool: pool}
}

// Organization is a ROR organization record
type Organization struct {
	ID string `json:"id"`
}

type organizationsResponse struct {
	Items []Organization `json:"items"`
}

// SearchOrganizations searches organizations by name or city and returns
// up to ten ROR IDs
func (c *Client) SearchOrganizations(ctx context.Context, query string) ([]string, error) {
	params := url.Values{
		"query": {query},
		"page":  {"1"},
	}

	reqURL := BaseURL + "/organizations?" + params.Encode()

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "ResearchBridge/1.0",
	}

	if c.metrics != nil {
		c.metrics.IncrementRORCalls()
	}
	start := time.Now()

	resp, err := resilience.HTTPExecuteWithRetry(ctx, serviceName, func() (*http.Response, error) {
		return c.pool.DoRequest(ctx, http.MethodGet, reqURL, headers)
	})
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
			resp.Body.Close()
		}
		c.observe(status, start, false)
		resilience.RecordError(serviceName, err)
		return nil, fmt.Errorf("ror request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("ror returned HTTP %d", resp.StatusCode)
		c.observe(resp.StatusCode, start, false)
		resilience.RecordError(serviceName, err)
		return nil, err
	}

	var data organizationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.observe(resp.StatusCode, start, false)
		return nil, fmt.Errorf("parsing ror response: %w", err)
	}
	c.observe(resp.StatusCode, start, true)

	ids := make([]string, 0, len(data.Items))
	for _, org := range data.Items {
		if strings.Contains(org.ID, "ror.org/") {
			ids = append(ids, org.ID)
		}
		if len(ids) == maxInstitutions {
			break
		}
	}

	resilience.RecordRequest(serviceName, true)
	return ids, nil
}

func (c *Client) observe(status int, start time.Time, success bool) {
	if c.metrics != nil {
		c.metrics.RecordExternalAPIRequest(serviceName, success)
	}
	if c.logger != nil {
		c.logger.ExternalAPILogger(serviceName, http.MethodGet, "/organizations", status, time.Since(start), success)
	}
}

// GetPoolStats returns connection pool statistics
func (c *Client) GetPoolStats() map[string]interface{} {
	return c.pool.GetStats()
}

// Close closes the connection pool
func (c *Client) Close() error {
	return c.pool.Close()
}
