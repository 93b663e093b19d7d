package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-coders/modelbench/internal/engine"
)

func newTestServer(t *testing.T) (*Server, *Status, string) {
	t.Helper()
	dir := t.TempDir()
	status := NewStatus()
	srv := New(Config{Port: 0, ResultsDir: dir}, status)
	return srv, status, dir
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestProgressEndpoint(t *testing.T) {
	srv, status, _ := newTestServer(t)

	status.SetRunning(true)
	status.Progress(42.5)
	status.Log("first")
	status.Log("second")

	w := get(t, srv, "/api/progress")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Running  bool     `json:"running"`
		Progress float64  `json:"progress"`
		Logs     []string `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Running)
	assert.Equal(t, 42.5, body.Progress)
	assert.Equal(t, []string{"first", "second"}, body.Logs)
}

func TestSummaryEndpoint(t *testing.T) {
	srv, _, dir := newTestServer(t)

	// Nothing written yet.
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/summary").Code)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "_summary_stats.json"), []byte(`{"run_id":"r1"}`), 0o644))
	w := get(t, srv, "/api/summary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "r1")
}

func TestStatsEndpoint(t *testing.T) {
	srv, _, dir := newTestServer(t)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "code"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code", "_stats.json"), []byte(`{"total_cases":7}`), 0o644))

	w := get(t, srv, "/api/stats/code")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_cases":7`)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/stats/bogus").Code)
}

func TestResultsEndpoint(t *testing.T) {
	srv, _, dir := newTestServer(t)
	codeDir := filepath.Join(dir, "code")
	require.NoError(t, os.MkdirAll(codeDir, 0o755))

	write := func(name string, res engine.CaseResult) {
		data, err := json.Marshal(res)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(codeDir, name), data, 0o644))
	}
	// Written out of order; stats and artifacts must be skipped.
	write("T02_b.json", engine.CaseResult{ID: "T02", Success: true})
	write("T01_a.json", engine.CaseResult{ID: "T01", Success: false})
	require.NoError(t, os.WriteFile(filepath.Join(codeDir, "_stats.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(codeDir, "T01_a.html"), []byte("<html></html>"), 0o644))

	w := get(t, srv, "/api/results/code")
	require.Equal(t, http.StatusOK, w.Code)

	var results []engine.CaseResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	require.Len(t, results, 2)
	assert.Equal(t, "T01", results[0].ID)
	assert.Equal(t, "T02", results[1].ID)
}

func TestResultsEndpointMissingCategoryDir(t *testing.T) {
	srv, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, srv, "/api/results/writing").Code)
}

func TestStaticArtifacts(t *testing.T) {
	srv, _, dir := newTestServer(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "code"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "code", "T01_page.html"), []byte("<html>hi</html>"), 0o644))

	w := get(t, srv, "/results/code/T01_page.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<html>hi</html>", w.Body.String())
}

func TestStatusLogRing(t *testing.T) {
	s := NewStatus()
	for i := 0; i < maxRecentLogs+50; i++ {
		s.Log("line")
	}
	_, _, logs := s.Snapshot()
	assert.Len(t, logs, maxRecentLogs)
}
