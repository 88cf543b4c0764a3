package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpapi "github.com/pathsight/pathsight/internal/api/http"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/pkg/types"
)

// TestReportRoundTrip tests that a profiled run's stored report is served
// back verbatim, both by run id and through the latest alias.
func TestReportRoundTrip(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	seeded := seedRun(t, env)
	handler := httpapi.DefaultMiddleware()(
		httpapi.NewReportsHandler(env.reports, env.cat).WithStats(env.stats))

	// Fetch by explicit run id
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/"+seeded.RunID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("report fetch failed: %d - %s", rec.Code, rec.Body.String())
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("stored report is not valid JSON: %v", err)
	}
	if doc["run_id"] != seeded.RunID {
		t.Errorf("expected run_id=%s in document, got %v", seeded.RunID, doc["run_id"])
	}

	// The latest alias resolves to the same run
	req = httptest.NewRequest(http.MethodGet, "/v1/reports/latest", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("latest fetch failed: %d - %s", rec.Code, rec.Body.String())
	}
	doc = map[string]interface{}{}
	json.Unmarshal(rec.Body.Bytes(), &doc)
	if doc["run_id"] != seeded.RunID {
		t.Errorf("expected latest to resolve to %s, got %v", seeded.RunID, doc["run_id"])
	}

	if got := env.stats.Counter(observability.CounterReportsServed); got != 2 {
		t.Errorf("expected reports_served=2, got %d", got)
	}
}

// TestReportNotFound tests the two lookup failure modes.
func TestReportNotFound(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	seedRun(t, env)
	handler := httpapi.DefaultMiddleware()(httpapi.NewReportsHandler(env.reports, env.cat))

	// A well-formed run id that was never registered is a miss
	missing, err := types.NewULIDGenerator().Generate()
	if err != nil {
		t.Fatalf("failed to generate id: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/reports/"+missing.String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown run, got %d: %s", rec.Code, rec.Body.String())
	}

	// A malformed run id is a client error, not a miss
	req = httptest.NewRequest(http.MethodGet, "/v1/reports/not-a-ulid", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed run id, got %d: %s", rec.Code, rec.Body.String())
	}
}

// TestRunsEndpoints tests run listing and lookup.
func TestRunsEndpoints(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	first := seedRun(t, env)
	second := seedRun(t, env)

	handler := httpapi.DefaultMiddleware()(httpapi.NewRunsHandler(env.cat))

	// List all runs, newest first
	req := httptest.NewRequest(http.MethodGet, "/v1/runs", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("runs list failed: %d - %s", rec.Code, rec.Body.String())
	}

	var listResp httpapi.RunsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if listResp.Total != 2 {
		t.Errorf("expected total=2, got %d", listResp.Total)
	}
	if len(listResp.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(listResp.Runs))
	}
	if listResp.Runs[0].RunID != second.RunID {
		t.Errorf("expected newest run %s first, got %s", second.RunID, listResp.Runs[0].RunID)
	}

	// Limit caps the listing
	req = httptest.NewRequest(http.MethodGet, "/v1/runs?limit=1", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var limited httpapi.RunsResponse
	json.Unmarshal(rec.Body.Bytes(), &limited)
	if len(limited.Runs) != 1 {
		t.Errorf("expected 1 run with limit=1, got %d", len(limited.Runs))
	}

	// Single run lookup
	req = httptest.NewRequest(http.MethodGet, "/v1/runs/"+first.RunID, nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("run lookup failed: %d - %s", rec.Code, rec.Body.String())
	}
	var single httpapi.RunResponse
	json.Unmarshal(rec.Body.Bytes(), &single)
	if single.Run == nil || single.Run.RunID != first.RunID {
		t.Errorf("expected run %s, got %+v", first.RunID, single.Run)
	}

	// Bad limit is rejected
	req = httptest.NewRequest(http.MethodGet, "/v1/runs?limit=abc", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", rec.Code)
	}
}

// TestStatsEndpoint tests the service statistics snapshot after a run.
func TestStatsEndpoint(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	seedRun(t, env)

	handler := httpapi.DefaultMiddleware()(httpapi.NewStatsHandler(env.cat, env.stats))

	req := httptest.NewRequest(http.MethodGet, "/v1/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stats failed: %d - %s", rec.Code, rec.Body.String())
	}

	var resp httpapi.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Runs != 1 {
		t.Errorf("expected runs=1, got %d", resp.Runs)
	}
	if got := resp.Counters[observability.CounterEventsParsed]; got != 9 {
		t.Errorf("expected events_parsed=9, got %d", got)
	}
	if got := resp.Counters[observability.CounterRunsCompleted]; got != 1 {
		t.Errorf("expected runs_completed=1, got %d", got)
	}
	if len(resp.TopEvents) == 0 {
		t.Error("expected top_events to be populated")
	}
	if resp.RequestID == "" {
		t.Error("expected request_id in response")
	}
}
