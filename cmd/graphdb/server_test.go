package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dreamware/graphdb"
	"github.com/dreamware/graphdb/internal/blobstore"
	"github.com/dreamware/graphdb/internal/model"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	engine := graphdb.New(blobstore.NewMemoryBackend(), graphdb.Config{})
	return newServer(engine, model.AuthContext{IsAdmin: true}, zap.NewNop())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServerNodeLifecycle(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodPost, "/nodes/", map[string]any{
		"type":       "person",
		"properties": map[string]any{"name": "Ada"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var created model.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Equal(t, int64(1), created.Version)

	rec = doJSON(t, h, http.MethodGet, "/nodes/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPatch, "/nodes/"+created.ID, map[string]any{
		"patch": map[string]any{"name": "Ada Lovelace"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated model.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	require.Equal(t, "Ada Lovelace", updated.Properties["name"])

	rec = doJSON(t, h, http.MethodDelete, "/nodes/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/nodes/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerNodeValidationError(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	rec := doJSON(t, h, http.MethodPost, "/nodes/", map[string]any{
		"properties": map[string]any{"name": "no type"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerRelationshipLifecycle(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	a := mustCreateNode(t, h, "person")
	b := mustCreateNode(t, h, "person")

	rec := doJSON(t, h, http.MethodPost, "/relationships/", map[string]any{
		"from": a.ID,
		"to":   b.ID,
		"type": "KNOWS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/relationships/?from="+a.ID+"&to="+b.ID+"&type=KNOWS", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodDelete, "/relationships/?from="+a.ID+"&to="+b.ID+"&type=KNOWS", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/relationships/?from="+a.ID+"&to="+b.ID+"&type=KNOWS", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerTraverse(t *testing.T) {
	s := newTestServer(t)
	h := s.routes()

	a := mustCreateNode(t, h, "person")
	b := mustCreateNode(t, h, "person")

	rec := doJSON(t, h, http.MethodPost, "/relationships/", map[string]any{
		"from": a.ID,
		"to":   b.ID,
		"type": "KNOWS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/traverse", map[string]any{
		"from": a.ID,
		"type": "KNOWS",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var related []model.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &related))
	require.Len(t, related, 1)
	require.Equal(t, b.ID, related[0].ID)
}

func mustCreateNode(t *testing.T, h http.Handler, typ string) model.Node {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/nodes/", map[string]any{"type": typ})
	require.Equal(t, http.StatusOK, rec.Code)
	var n model.Node
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
	return n
}
