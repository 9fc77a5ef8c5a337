// Package openalex is a typed client for the OpenAlex REST API. It covers
// the author, works grouping, and topic endpoints the discovery flow needs.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/researchbridge/backend/internal/monitoring"
	"github.com/researchbridge/backend/internal/resilience"
	"github.com/researchbridge/backend/internal/types"
)

// BaseURL is the OpenAlex API endpoint. Declared as a var so tests can
// substitute an httptest server.
var BaseURL = "https://api.openalex.org"

const serviceName = "openalex-api"

// Client queries the OpenAlex API
type Client struct {
	// Mailto is sent as the mailto parameter for polite pool access
	Mailto string
	pool   *resilience.ConnectionPool

	metrics *monitoring.Metrics
	logger  *monitoring.Logger
}

// Instrument attaches metrics and logging. Either argument may be nil.
func (c *Client) Instrument(metrics *monitoring.Metrics, logger *monitoring.Logger) {
	c.metrics = metrics
	c.logger = logger
}

// NewClient creates an OpenAlex client with connection pooling
func NewClient(mailto string) *Client {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 3,
	})

	pool := resilience.NewConnectionPool(10, 20, 30*time.Second, cb)

	// OpenAlex rate-limits the polite pool, so back off slowly on 429s.
	resilience.RegisterServicePolicy(serviceName, resilience.SlowRetryPolicy)

	return &Client{
		Mailto: mailto,
		pool:   pool,
	}
}

// Author is an OpenAlex author record
type Author struct {
	ID                   string       `json:"id"`
	DisplayName          string       `json:"display_name"`
	ORCID                string       `json:"orcid"`
	WorksCount           int          `json:"works_count"`
	CitedByCount         int          `json:"cited_by_count"`
	LastKnownInstitution *Institution `json:"last_known_institution"`
}

// Institution is an author's last known affiliation
type Institution struct {
	DisplayName string `json:"display_name"`
	ROR         string `json:"ror"`
	CountryCode string `json:"country_code"`
	Type        string `json:"type"`
}

// Topic is an OpenAlex research topic
type Topic struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"relevance_score"`
}

// AuthorGroup is one bucket of a works group_by query
type AuthorGroup struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

type authorsResponse struct {
	Results []Author `json:"results"`
}

type topicsResponse struct {
	Results []Topic `json:"results"`
}

type worksGroupResponse struct {
	GroupBy []AuthorGroup `json:"group_by"`
}

// ToResearcher converts an author record to the domain type. The matched
// works count is supplied by the caller since it depends on the query.
func (a Author) ToResearcher(matchedWorksCount int) types.Researcher {
	r := types.Researcher{
		ID:                a.ID,
		Name:              a.DisplayName,
		ORCID:             a.ORCID,
		MatchedWorksCount: matchedWorksCount,
	}

	works := a.WorksCount
	cited := a.CitedByCount
	r.WorksCount = &works
	r.CitedByCount = &cited

	if a.LastKnownInstitution != nil {
		r.LastKnownInstitution = &types.Institution{
			Name:    a.LastKnownInstitution.DisplayName,
			ROR:     a.LastKnownInstitution.ROR,
			Country: a.LastKnownInstitution.CountryCode,
			Type:    a.LastKnownInstitution.Type,
		}
	}

	return r
}

// SearchAuthors searches authors by name
func (c *Client) SearchAuthors(ctx context.Context, search string, page, perPage int) ([]Author, error) {
	params := url.Values{
		"search":   {search},
		"per-page": {strconv.Itoa(perPage)},
		"page":     {strconv.Itoa(page)},
	}

	var resp authorsResponse
	if err := c.get(ctx, "/authors", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AuthorsByID fetches author records for the given OpenAlex IDs
func (c *Client) AuthorsByID(ctx context.Context, ids []string) ([]Author, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	params := url.Values{
		"filter":   {"id:" + strings.Join(ids, "|")},
		"per-page": {"200"},
	}

	var resp authorsResponse
	if err := c.get(ctx, "/authors", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GroupWorksByAuthor groups works matching the filter by author and
// returns per-author work counts
func (c *Client) GroupWorksByAuthor(ctx context.Context, filter string) ([]AuthorGroup, error) {
	params := url.Values{
		"filter":   {filter},
		"group_by": {"authorships.author.id"},
		"per-page": {"200"},
	}

	var resp worksGroupResponse
	if err := c.get(ctx, "/works", params, &resp); err != nil {
		return nil, err
	}
	return resp.GroupBy, nil
}

// SearchTopics searches research topics by free text
func (c *Client) SearchTopics(ctx context.Context, search string) ([]Topic, error) {
	params := url.Values{
		"search": {search},
	}

	var resp topicsResponse
	if err := c.get(ctx, "/topics", params, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if c.Mailto != "" {
		params.Set("mailto", c.Mailto)
	}

	reqURL := BaseURL + path + "?" + params.Encode()

	headers := map[string]string{
		"Accept":     "application/json",
		"User-Agent": "ResearchBridge/1.0",
	}

	if c.metrics != nil {
		c.metrics.IncrementOpenAlexCalls()
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
		c.observe(path, status, start, false)
		resilience.RecordError(serviceName, err)
		return fmt.Errorf("openalex request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("openalex returned HTTP %d for %s", resp.StatusCode, path)
		c.observe(path, resp.StatusCode, start, false)
		resilience.RecordError(serviceName, err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.observe(path, resp.StatusCode, start, false)
		return fmt.Errorf("parsing openalex response: %w", err)
	}

	c.observe(path, resp.StatusCode, start, true)
	resilience.RecordRequest(serviceName, true)
	return nil
}

func (c *Client) observe(path string, status int, start time.Time, success bool) {
	if c.metrics != nil {
		c.metrics.RecordExternalAPIRequest(serviceName, success)
	}
	if c.logger != nil {
		c.logger.ExternalAPILogger(serviceName, http.MethodGet, path, status, time.Since(start), success)
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
