package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/lbcscraper/internal/config"
	"github.com/IshaanNene/lbcscraper/internal/observability"
	"github.com/IshaanNene/lbcscraper/internal/storage"
	"github.com/IshaanNene/lbcscraper/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.OutputDir = dir

	sales := types.Reindex([]types.Listing{{
		Price: types.Int(200000), Location: "Albi 81000", Description: "Maison",
		SurfaceM2: types.Int(100), Rooms: types.Int(4), URL: "https://www.leboncoin.fr/ad/v/1",
	}})
	require.NoError(t, storage.WriteListings(cfg.SalesPath(), sales, testLogger))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644))

	metrics := observability.NewMetrics(testLogger)
	metrics.PagesFetched.Add(2)
	return NewServer(cfg, metrics, testLogger), dir
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestListFiles(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/files", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(2), body["count"])

	files := body["files"].([]any)
	assert.Equal(t, "annonces.json", files[0].(map[string]any)["name"])
	assert.Equal(t, "broken.json", files[1].(map[string]any)["name"])
}

func TestGetFile(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/file/annonces.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "annonces.json", body["filename"])

	content := body["content"].([]any)
	require.Len(t, content, 1)
	assert.Equal(t, float64(2000), content[0].(map[string]any)["price_per_m2"])
}

func TestGetFileErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec, body := do(t, s, http.MethodGet, "/api/file/missing.json", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = do(t, s, http.MethodGet, "/api/file/notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/file/..json", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/file/broken.json", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMultipleFiles(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodPost, "/api/files/multiple", `{"files":["annonces.json","nope.json"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, float64(1), body["success_count"])
	assert.Equal(t, float64(1), body["error_count"])

	rec, _ = do(t, s, http.MethodPost, "/api/files/multiple", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	sales := body["sales"].(map[string]any)
	assert.Equal(t, float64(1), sales["count"])
	assert.Equal(t, float64(2000), sales["mean"])
	assert.Equal(t, float64(2), body["metrics"].(map[string]any)["pages_fetched"])
}

func TestPreflightAndUnknownRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodOptions, "/api/files", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec, body := do(t, s, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error"])
}

func TestMetricsRoute(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lbcscraper_pages_fetched_total 2")
}
