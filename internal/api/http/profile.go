package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/ingest"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/internal/profiler"
	"github.com/pathsight/pathsight/internal/report"
)

// ProfileRequest represents a profiling request. Events are supplied inline
// or referenced by a server-side input path, never both.
type ProfileRequest struct {
	Events    []map[string]interface{} `json:"events,omitempty"`
	InputPath string                   `json:"input_path,omitempty"`
	Source    string                   `json:"source,omitempty"`
}

// ProfileResponse represents the profiling response.
type ProfileResponse struct {
	RunID        string   `json:"run_id"`
	EventCount   int64    `json:"event_count"`
	UserCount    int64    `json:"user_count"`
	SessionCount int64    `json:"session_count"`
	Malformed    int64    `json:"malformed"`
	Duplicates   int64    `json:"duplicates"`
	DurationMs   int64    `json:"duration_ms"`
	Warnings     []string `json:"warnings"`
	RequestID    string   `json:"request_id"`
}

// ProfileHandler handles POST /v1/profile requests.
type ProfileHandler struct {
	loader  *ingest.Loader
	engine  *profiler.Engine
	reports *report.Store
	catalog catalog.Catalog
	cfgJSON json.RawMessage
	stats   *observability.RunStats
}

// NewProfileHandler creates a new profile handler. analysisCfg is snapshotted
// into every run record so past reports stay interpretable after config
// changes.
func NewProfileHandler(
	loader *ingest.Loader,
	engine *profiler.Engine,
	reports *report.Store,
	cat catalog.Catalog,
	analysisCfg config.AnalysisConfig,
) *ProfileHandler {
	cfgJSON, _ := json.Marshal(analysisCfg)
	return &ProfileHandler{
		loader:  loader,
		engine:  engine,
		reports: reports,
		catalog: cat,
		cfgJSON: cfgJSON,
	}
}

// WithStats attaches a run statistics tracker.
func (h *ProfileHandler) WithStats(stats *observability.RunStats) *ProfileHandler {
	h.stats = stats
	return h
}

// ServeHTTP handles the profile HTTP request.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", requestID)
		return
	}

	// Parse request body
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err), requestID)
		return
	}

	// Validate input source
	if len(req.Events) == 0 && req.InputPath == "" {
		writeError(w, http.StatusBadRequest, "events or input_path is required", requestID)
		return
	}
	if len(req.Events) > 0 && req.InputPath != "" {
		writeError(w, http.StatusBadRequest, "events and input_path are mutually exclusive", requestID)
		return
	}

	start := time.Now()

	// Normalize the event stream
	var (
		res *ingest.Result
		err error
	)
	if req.InputPath != "" {
		res, err = h.loader.Load(r.Context(), req.InputPath)
	} else {
		res, err = h.loader.LoadObjects(req.Events)
	}
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}
	if h.stats != nil {
		h.stats.RecordStage(observability.StageIngest, time.Since(start))
	}
	h.countIngest(res)

	source := req.Source
	if source == "" {
		source = req.InputPath
	}
	if source == "" {
		source = "api"
	}

	// Run the analysis pipeline
	rep, err := h.engine.Run(r.Context(), res.Events, source)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	// Persist report artifacts
	writeStart := time.Now()
	artifacts, err := h.reports.Write(r.Context(), rep)
	if err != nil {
		writeServiceError(w, err, requestID)
		return
	}
	if h.stats != nil {
		h.stats.RecordStage(observability.StageReport, time.Since(writeStart))
	}

	// Register the run in the catalog
	rec := &catalog.RunRecord{
		RunID:          rep.RunID,
		CreatedAt:      rep.GeneratedAt,
		Source:         source,
		Format:         res.Format,
		EventCount:     rep.BasicStats.TotalEvents,
		UserCount:      rep.BasicStats.UniqueUsers,
		SessionCount:   rep.Sessions.TotalSessions,
		DurationMS:     time.Since(start).Milliseconds(),
		Status:         catalog.StatusCompleted,
		Warnings:       rep.Warnings,
		Config:         h.cfgJSON,
		JSONPath:       artifacts.JSONPath,
		CompressedPath: artifacts.CompressedPath,
	}
	if err := h.catalog.Register(r.Context(), rec); err != nil {
		writeServiceError(w, err, requestID)
		return
	}

	resp := ProfileResponse{
		RunID:        rep.RunID,
		EventCount:   rep.BasicStats.TotalEvents,
		UserCount:    rep.BasicStats.UniqueUsers,
		SessionCount: rep.Sessions.TotalSessions,
		Malformed:    res.Malformed,
		Duplicates:   res.Duplicates,
		DurationMs:   rec.DurationMS,
		Warnings:     rep.Warnings,
		RequestID:    requestID,
	}

	// Ensure warnings is not nil for JSON serialization
	if resp.Warnings == nil {
		resp.Warnings = []string{}
	}

	writeJSON(w, http.StatusOK, resp)
}

// countIngest tracks ingest counters when a stats sink is attached.
func (h *ProfileHandler) countIngest(res *ingest.Result) {
	if h.stats == nil {
		return
	}
	h.stats.AddCounter(observability.CounterEventsParsed, int64(len(res.Events)))
	h.stats.AddCounter(observability.CounterMalformed, res.Malformed)
	h.stats.AddCounter(observability.CounterDuplicates, res.Duplicates)
	h.stats.RecordEvents(res.Events)
}
