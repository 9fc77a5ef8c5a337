package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchbridge/backend/internal/database"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"single value", "machine learning", []string{"machine learning"}},
		{"multiple values", "robotics, vision,nlp", []string{"robotics", "vision", "nlp"}},
		{"drops empty segments", "a,,b, ,c", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.raw))
		})
	}
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"missing", "", 10},
		{"valid", "page=3", 3},
		{"not a number", "page=abc", 10},
		{"zero falls back", "page=0", 10},
		{"negative falls back", "page=-2", 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/?"+tt.query, nil)
			assert.Equal(t, tt.want, queryInt(c, "page", 10))
		})
	}
}

func TestLastName(t *testing.T) {
	tests := []struct {
		full string
		want string
	}{
		{"Maya Chen", "chen"},
		{"Jose Luis Garcia Marquez", "marquez"},
		{"Curie", "curie"},
		{"", ""},
		{"  trailing spaces  ", "spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.full, func(t *testing.T) {
			assert.Equal(t, tt.want, lastName(tt.full))
		})
	}
}

func newSavedItemRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	r := gin.New()
	registerSavedItemRoutes(r, database.NewRepository(db))
	return r
}

func TestSavedItemRoutes(t *testing.T) {
	r := newSavedItemRouter(t)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/lists/favorites/items", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}
	getItems := func() []database.SavedItem {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lists/favorites/items", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Items []database.SavedItem `json:"items"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp.Items
	}

	w := post(`{"itemId": "A123", "payload": {"name": "Maya Chen"}}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	w = post(`{"itemId": "A456", "payload": {"name": "Ravi Patel"}}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, getItems(), 2)

	// Re-saving the same item updates the snapshot instead of duplicating
	w = post(`{"itemId": "A123", "payload": {"name": "Maya Chen", "note": "updated"}}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, getItems(), 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/lists/favorites/items/A123", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	items := getItems()
	require.Len(t, items, 1)
	assert.Equal(t, "A456", items[0].ItemID)
}

func TestSavedItemRoutesValidation(t *testing.T) {
	r := newSavedItemRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/lists/favorites/items", bytes.NewBufferString(`{"payload": {}}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/lists/favorites/items", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// An empty list reads back as an empty array
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/lists/empty/items", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"items": []}`, w.Body.String())
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("RB_TEST_ENV_KEY", "custom")
	assert.Equal(t, "custom", getEnvOrDefault("RB_TEST_ENV_KEY", "fallback"))
	assert.Equal(t, "fallback", getEnvOrDefault("RB_TEST_ENV_KEY_MISSING", "fallback"))
}
