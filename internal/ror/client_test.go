package ror

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchbridge/backend/internal/monitoring"
)

func withTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	original := BaseURL
	BaseURL = server.URL
	t.Cleanup(func() { BaseURL = original })

	client := NewClient()
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSearchOrganizations(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "vancouver", q.Get("query"))
		assert.Equal(t, "1", q.Get("page"))

		w.Write([]byte(`{"items": [
			{"id": "https://ror.org/03rmrcq20"},
			{"id": "https://ror.org/0213rcc28"},
			{"id": "not-a-ror-identifier"}
		]}`))
	})

	ids, err := client.SearchOrganizations(context.Background(), "vancouver")
	require.NoError(t, err)
	// Non-ROR identifiers are dropped
	assert.Equal(t, []string{"https://ror.org/03rmrcq20", "https://ror.org/0213rcc28"}, ids)
}

func TestSearchOrganizationsCapped(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": [`)
		for i := 0; i < 25; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"id": "https://ror.org/%08d"}`, i)
		}
		fmt.Fprint(w, `]}`)
	})

	ids, err := client.SearchOrganizations(context.Background(), "university")
	require.NoError(t, err)
	assert.Len(t, ids, maxInstitutions)
}

func TestSearchOrganizationsServerError(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.SearchOrganizations(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSearchOrganizationsEmptyResult(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	})

	ids, err := client.SearchOrganizations(context.Background(), "xyzzy")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestClientInstrumentation(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items": []}`))
	})

	metrics := monitoring.NewMetrics()
	client.Instrument(metrics, nil)

	_, err := client.SearchOrganizations(context.Background(), "vancouver")
	require.NoError(t, err)

	assert.Equal(t, int64(1), metrics.GetStats()["ror_api_calls"])

	apiStats, ok := metrics.GetExternalAPIStats()["ror-api"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), apiStats["requests"])
	assert.Equal(t, int64(0), apiStats["errors"])
}
