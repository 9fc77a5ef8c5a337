package openalex

import (
	"context"
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

	client := NewClient("test@researchbridge.dev")
	t.Cleanup(func() { client.Close() })
	return client
}

func TestSearchAuthors(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/authors", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "jane smith", q.Get("search"))
		assert.Equal(t, "50", q.Get("per-page"))
		assert.Equal(t, "1", q.Get("page"))
		assert.Equal(t, "test@researchbridge.dev", q.Get("mailto"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"results": [
				{
					"id": "https://openalex.org/A1",
					"display_name": "Jane Smith",
					"orcid": "https://orcid.org/0000-0001-2345-6789",
					"works_count": 42,
					"cited_by_count": 900,
					"last_known_institution": {
						"display_name": "University of British Columbia",
						"ror": "https://ror.org/03rmrcq20",
						"country_code": "CA",
						"type": "education"
					}
				}
			]
		}`))
	})

	authors, err := client.SearchAuthors(context.Background(), "jane smith", 1, 50)
	require.NoError(t, err)
	require.Len(t, authors, 1)
	assert.Equal(t, "https://openalex.org/A1", authors[0].ID)
	assert.Equal(t, 42, authors[0].WorksCount)
	require.NotNil(t, authors[0].LastKnownInstitution)
	assert.Equal(t, "https://ror.org/03rmrcq20", authors[0].LastKnownInstitution.ROR)
}

func TestAuthorsByID(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "id:https://openalex.org/A1|https://openalex.org/A2", q.Get("filter"))
		assert.Equal(t, "200", q.Get("per-page"))

		w.Write([]byte(`{"results": [{"id": "https://openalex.org/A1"}, {"id": "https://openalex.org/A2"}]}`))
	})

	authors, err := client.AuthorsByID(context.Background(), []string{"https://openalex.org/A1", "https://openalex.org/A2"})
	require.NoError(t, err)
	assert.Len(t, authors, 2)
}

func TestAuthorsByIDEmpty(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for an empty id list")
	})

	authors, err := client.AuthorsByID(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, authors)
}

func TestGroupWorksByAuthor(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/works", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "institutions.ror:https://ror.org/03rmrcq20", q.Get("filter"))
		assert.Equal(t, "authorships.author.id", q.Get("group_by"))

		w.Write([]byte(`{"group_by": [
			{"key": "https://openalex.org/A1", "count": 12},
			{"key": "https://openalex.org/A2", "count": 3}
		]}`))
	})

	groups, err := client.GroupWorksByAuthor(context.Background(), "institutions.ror:https://ror.org/03rmrcq20")
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, 12, groups[0].Count)
}

func TestSearchTopics(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/topics", r.URL.Path)
		assert.Equal(t, "machine learning", r.URL.Query().Get("search"))

		w.Write([]byte(`{"results": [
			{"id": "https://openalex.org/T1", "display_name": "Machine Learning", "relevance_score": 98.5}
		]}`))
	})

	topics, err := client.SearchTopics(context.Background(), "machine learning")
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, 98.5, topics[0].Score)
}

func TestGetNon200(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.SearchTopics(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestToResearcher(t *testing.T) {
	author := Author{
		ID:           "https://openalex.org/A1",
		DisplayName:  "Jane Smith",
		ORCID:        "https://orcid.org/0000-0001-2345-6789",
		WorksCount:   42,
		CitedByCount: 900,
		LastKnownInstitution: &Institution{
			DisplayName: "University of British Columbia",
			ROR:         "https://ror.org/03rmrcq20",
			CountryCode: "CA",
			Type:        "education",
		},
	}

	r := author.ToResearcher(7)
	assert.Equal(t, "https://openalex.org/A1", r.ID)
	assert.Equal(t, 7, r.MatchedWorksCount)
	require.NotNil(t, r.WorksCount)
	assert.Equal(t, 42, *r.WorksCount)
	require.NotNil(t, r.LastKnownInstitution)
	assert.Equal(t, "University of British Columbia", r.LastKnownInstitution.Name)
	assert.Equal(t, "CA", r.LastKnownInstitution.Country)
}

func TestToResearcherNoInstitution(t *testing.T) {
	r := Author{ID: "https://openalex.org/A2", DisplayName: "Indie Scholar"}.ToResearcher(0)
	assert.Nil(t, r.LastKnownInstitution)
	assert.False(t, r.HasInstitution())
}

func TestClientInstrumentation(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": []}`))
	})

	metrics := monitoring.NewMetrics()
	client.Instrument(metrics, nil)

	_, err := client.SearchAuthors(context.Background(), "jane smith", 1, 50)
	require.NoError(t, err)
	_, err = client.SearchTopics(context.Background(), "glaciology")
	require.NoError(t, err)

	assert.Equal(t, int64(2), metrics.GetStats()["openalex_api_calls"])

	apiStats, ok := metrics.GetExternalAPIStats()["openalex-api"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(2), apiStats["requests"])
	assert.Equal(t, int64(0), apiStats["errors"])
}

func TestClientInstrumentationRecordsErrors(t *testing.T) {
	client := withTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	metrics := monitoring.NewMetrics()
	client.Instrument(metrics, nil)

	_, err := client.SearchAuthors(context.Background(), "jane smith", 1, 50)
	require.Error(t, err)

	apiStats, ok := metrics.GetExternalAPIStats()["openalex-api"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, int64(1), apiStats["errors"])
}
