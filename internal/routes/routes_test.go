package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diagramdb/internal/auth"
	"diagramdb/internal/handlers"
	"diagramdb/internal/middlewares"
	"diagramdb/internal/realtime"
	"diagramdb/internal/services"
	"diagramdb/internal/storage"
	"diagramdb/internal/storage/sqlite"
)

type testAPI struct {
	router   *gin.Engine
	verifier *auth.Verifier
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(":memory:", "u1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	diagramService := services.NewDiagramService(func(*auth.Identity) storage.Store { return store })
	realtimeService := services.NewRealtimeService(realtime.NewMemoryBroker())
	t.Cleanup(func() { realtimeService.Close(context.Background()) })

	verifier := auth.NewVerifier([]byte("test-secret"))

	router := gin.New()
	RegisterRoutes(
		router,
		middlewares.Authenticate(verifier),
		handlers.NewDiagramHandler(diagramService),
		handlers.NewContentHandler(diagramService),
		handlers.NewConfigHandler(diagramService),
		handlers.NewRealtimeHandler(realtimeService),
	)
	return &testAPI{router: router, verifier: verifier}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	token, err := a.verifier.Token(auth.Identity{ID: "u1", Name: "Alice"}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	var envelope struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Equal(t, "success", envelope.Status, "body: %s", rec.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
}

func TestRoutes_RequireAuth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/diagrams", nil)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/diagrams", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_DiagramCRUD(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/diagrams", gin.H{
		"id":               "d1",
		"name":             "orders",
		"database_type":    "postgresql",
		"database_edition": "14",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	decodeData(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "orders", list[0]["name"])

	// Clearing the edition with an explicit null.
	rec = api.do(t, http.MethodPatch, "/api/v1/diagrams/d1", gin.H{
		"name":             "renamed",
		"database_edition": nil,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	decodeData(t, rec, &got)
	assert.Equal(t, "renamed", got["name"])
	assert.NotContains(t, got, "database_edition")

	rec = api.do(t, http.MethodDelete, "/api/v1/diagrams/d1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_Rename(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/diagrams", gin.H{
		"id": "old-id", "name": "orders", "database_type": "postgresql",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/diagrams/old-id/tables", gin.H{
		"id": "t1", "name": "users",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodPatch, "/api/v1/diagrams/old-id", gin.H{"id": "new-id"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/new-id/tables", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tables []map[string]any
	decodeData(t, rec, &tables)
	require.Len(t, tables, 1)
	assert.Equal(t, "t1", tables[0]["id"])

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/old-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_ContentMergePatch(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/diagrams", gin.H{
		"id": "d1", "name": "orders", "database_type": "postgresql",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/diagrams/d1/tables", gin.H{
		"id": "t1", "name": "users", "color": "blue",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodPatch, "/api/v1/diagrams/d1/tables/t1", gin.H{
		"name": "accounts",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1/tables/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var table map[string]any
	decodeData(t, rec, &table)
	assert.Equal(t, "accounts", table["name"])
	assert.Equal(t, "blue", table["color"], "untouched fields survive")
}

func TestRoutes_ConfigAndFilter(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPatch, "/api/v1/config", gin.H{"theme": "dark"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]any
	decodeData(t, rec, &cfg)
	assert.Equal(t, "dark", cfg["theme"])
	assert.Contains(t, cfg, "defaultDiagramId", "defaults are seeded on first write")

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1/filter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = api.do(t, http.MethodPut, "/api/v1/diagrams/d1/filter", gin.H{"hidden": []string{"t1"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1/filter", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/v1/diagrams/d1/filter", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/diagrams/d1/filter", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_RealtimeFlow(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/diagrams/d1/realtime", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var joined struct {
		SessionID string `json:"session_id"`
		DiagramID string `json:"diagram_id"`
	}
	decodeData(t, rec, &joined)
	require.NotEmpty(t, joined.SessionID)
	assert.Equal(t, "d1", joined.DiagramID)

	rec = api.do(t, http.MethodGet, "/api/v1/realtime/"+joined.SessionID+"/participants", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var participants []map[string]any
	decodeData(t, rec, &participants)
	require.Len(t, participants, 1)
	assert.Equal(t, "Alice", participants[0]["name"])

	rec = api.do(t, http.MethodPost, "/api/v1/realtime/"+joined.SessionID+"/cursor", gin.H{
		"x": 0.5, "y": 0.5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Own cursor is never echoed back.
	rec = api.do(t, http.MethodGet, "/api/v1/realtime/"+joined.SessionID+"/cursors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cursors []map[string]any
	decodeData(t, rec, &cursors)
	assert.Empty(t, cursors)

	rec = api.do(t, http.MethodDelete, "/api/v1/realtime/"+joined.SessionID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
