// Package profiler orchestrates a profiling run. Sessions are reconstructed
// first so that every analyzer sees the same immutable session-tagged stream,
// then the temporal, transition and pattern analyzers run as parallel tasks
// and their results are assembled into a single report.
package profiler

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pathsight/pathsight/internal/config"
	perrors "github.com/pathsight/pathsight/internal/errors"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/markov"
	"github.com/pathsight/pathsight/internal/mining"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/internal/session"
	"github.com/pathsight/pathsight/internal/temporal"
	"github.com/pathsight/pathsight/pkg/types"
)

// Engine runs the full analysis pipeline over a normalized event stream.
type Engine struct {
	cfg   config.AnalysisConfig
	ids   *types.ULIDGenerator
	stats *observability.RunStats
	log   *zap.Logger
}

// NewEngine creates a profiling engine with the given analysis settings.
func NewEngine(cfg config.AnalysisConfig) *Engine {
	return &Engine{
		cfg: cfg,
		ids: types.NewULIDGenerator(),
		log: logging.Named("profiler"),
	}
}

// WithStats attaches a run statistics tracker. Stage durations and run
// counters are recorded on it for the /v1/stats endpoint.
func (e *Engine) WithStats(stats *observability.RunStats) *Engine {
	e.stats = stats
	return e
}

// Run profiles the stream and returns the assembled report. The input must
// be normalized (sorted by user then time); an empty stream is an error, all
// other degradations surface as report warnings.
func (e *Engine) Run(ctx context.Context, events []types.Event, source string) (*types.Report, error) {
	if len(events) == 0 {
		return nil, perrors.NewEmptyInputError("no events to profile")
	}

	id, err := e.ids.Generate()
	if err != nil {
		return nil, perrors.NewInternalError("generating run id", err)
	}
	runID := id.String()
	start := time.Now()
	log := e.log.With(zap.String("run_id", runID))

	// Session assignment mutates the stream; it must be final before any
	// analyzer reads it.
	reconstructStart := time.Now()
	sessions := session.NewReconstructor(e.cfg).Reconstruct(events)
	e.recordStage(observability.StageReconstruct, time.Since(reconstructStart))

	analyzer := temporal.NewAnalyzer(e.cfg)
	terminals := analyzer.DetectTerminals(events, sessions)

	var (
		temporalRes *temporal.Result
		transitions types.TransitionAnalysis
		patterns    types.PatternAnalysis
	)
	analyzeStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := analyzer.Analyze(gctx, events, sessions, terminals)
		if err != nil {
			return err
		}
		temporalRes = res
		return nil
	})
	g.Go(func() error {
		_, transitions = markov.NewAnalyzer(e.cfg).Analyze(sessions)
		return nil
	})
	g.Go(func() error {
		patterns = mining.NewMiner(e.cfg).Mine(sessions, terminals)
		return nil
	})

	// Single-pass aggregates are cheap; keep them on the calling goroutine.
	basic := basicStats(events)
	system := systemEventStats(events)

	if err := g.Wait(); err != nil {
		if e.stats != nil {
			e.stats.AddCounter(observability.CounterRunsFailed, 1)
		}
		return nil, perrors.Wrap(perrors.ErrCategoryAnalysis, perrors.CodeAnalysisFailed, "analysis aborted", err)
	}
	e.recordStage(observability.StageAnalyze, time.Since(analyzeStart))

	report := &types.Report{
		RunID:        runID,
		GeneratedAt:  start.UTC(),
		Source:       source,
		BasicStats:   basic,
		Sessions:     temporalRes.Sessions,
		TimePatterns: temporalRes.TimePatterns,
		Transitions:  transitions,
		Patterns:     patterns,
		SystemEvents: system,
		Warnings:     temporalRes.Warnings,
	}

	for _, w := range report.Warnings {
		log.Warn("degraded statistic", zap.String("warning", w))
	}
	if e.stats != nil {
		e.stats.AddCounter(observability.CounterUsers, basic.UniqueUsers)
		e.stats.AddCounter(observability.CounterSessions, temporalRes.Sessions.TotalSessions)
		e.stats.AddCounter(observability.CounterRunsCompleted, 1)
	}

	log.Info("profiling run complete",
		zap.Int64("events", basic.TotalEvents),
		zap.Int64("users", basic.UniqueUsers),
		zap.Int64("sessions", temporalRes.Sessions.TotalSessions),
		zap.Duration("elapsed", time.Since(start)))
	return report, nil
}

func (e *Engine) recordStage(stage string, d time.Duration) {
	if e.stats != nil {
		e.stats.RecordStage(stage, d)
	}
}
