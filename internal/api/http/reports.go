package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/internal/report"
)

// statsTopEvents caps the event-frequency list in stats responses.
const statsTopEvents = 10

// RunsResponse represents a run listing response.
type RunsResponse struct {
	Runs      []*catalog.RunRecord `json:"runs"`
	Total     int64                `json:"total"`
	RequestID string               `json:"request_id"`
}

// RunResponse represents a single run lookup response.
type RunResponse struct {
	Run       *catalog.RunRecord `json:"run"`
	RequestID string             `json:"request_id"`
}

// RunsHandler handles GET /v1/runs and GET /v1/runs/{id} requests.
type RunsHandler struct {
	catalog catalog.Catalog
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(cat catalog.Catalog) *RunsHandler {
	return &RunsHandler{catalog: cat}
}

// ServeHTTP handles the runs HTTP request.
func (h *RunsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	if runID := pathSuffix(r.URL.Path, "/v1/runs"); runID != "" {
		h.serveRun(w, r, runID, requestID)
		return
	}
	h.serveList(w, r, requestID)
}

// serveList returns the most recent runs, newest first.
func (h *RunsHandler) serveList(w http.ResponseWriter, r *http.Request, requestID string) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", requestID)
			return
		}
		limit = n
	}

	runs, err := h.catalog.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}
	total, err := h.catalog.Count(r.Context())
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	resp := RunsResponse{
		Runs:      runs,
		Total:     total,
		RequestID: requestID,
	}

	// Ensure runs is not nil for JSON serialization
	if resp.Runs == nil {
		resp.Runs = []*catalog.RunRecord{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// serveRun returns a single run record by ID.
func (h *RunsHandler) serveRun(w http.ResponseWriter, r *http.Request, runID, requestID string) {
	rec, err := h.catalog.Get(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}
	writeJSON(w, http.StatusOK, RunResponse{Run: rec, RequestID: requestID})
}

// ReportsHandler handles GET /v1/reports/{id} and GET /v1/reports/latest
// requests, serving the stored report document verbatim.
type ReportsHandler struct {
	reports *report.Store
	catalog catalog.Catalog
	stats   *observability.RunStats
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(reports *report.Store, cat catalog.Catalog) *ReportsHandler {
	return &ReportsHandler{reports: reports, catalog: cat}
}

// WithStats attaches a run statistics tracker.
func (h *ReportsHandler) WithStats(stats *observability.RunStats) *ReportsHandler {
	h.stats = stats
	return h
}

// ServeHTTP handles the report HTTP request.
func (h *ReportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	runID := pathSuffix(r.URL.Path, "/v1/reports")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required", requestID)
		return
	}

	if runID == "latest" {
		rec, err := h.catalog.Latest(r.Context())
		if err != nil {
			writeServiceError(w, err, requestID)
			return
		}
		runID = rec.RunID
	} else {
		// The catalog lookup rejects unknown runs before any storage
		// round trip.
		if _, err := h.catalog.Get(r.Context(), runID); err != nil {
			writeServiceError(w, err, requestID)
			return
		}
	}

	data, err := h.reports.ReadRaw(r.Context(), runID)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	if h.stats != nil {
		h.stats.AddCounter(observability.CounterReportsServed, 1)
	}

	// The stored document is already JSON; serve it verbatim.
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// StatsResponse represents the service statistics response.
type StatsResponse struct {
	Runs      int64                      `json:"runs"`
	Counters  map[string]int64           `json:"counters"`
	Stages    []observability.StageStats `json:"stages"`
	TopEvents []observability.EventStats `json:"top_events"`
	RequestID string                     `json:"request_id"`
}

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	catalog catalog.Catalog
	stats   *observability.RunStats
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(cat catalog.Catalog, stats *observability.RunStats) *StatsHandler {
	return &StatsHandler{catalog: cat, stats: stats}
}

// ServeHTTP handles the stats HTTP request.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	runs, err := h.catalog.Count(r.Context())
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	snap := h.stats.Snapshot(statsTopEvents)
	resp := StatsResponse{
		Runs:      runs,
		Counters:  snap.Counters,
		Stages:    snap.Stages,
		TopEvents: snap.TopEvents,
		RequestID: requestID,
	}

	// Ensure collections are not nil for JSON serialization
	if resp.Counters == nil {
		resp.Counters = map[string]int64{}
	}
	if resp.Stages == nil {
		resp.Stages = []observability.StageStats{}
	}
	if resp.TopEvents == nil {
		resp.TopEvents = []observability.EventStats{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// pathSuffix extracts the trailing path element after base, or "".
func pathSuffix(path, base string) string {
	return strings.Trim(strings.TrimPrefix(path, base), "/")
}
