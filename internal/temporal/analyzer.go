// Package temporal computes session statistics and time-based activity
// patterns over a session-tagged event stream.
//
// All computations are total: statistics whose preconditions are unmet are
// reported as nil fields plus a warning string, never as misleading zeros and
// never as errors. The only failure mode is context cancellation during the
// per-user fan-out.
package temporal

import (
	"context"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/pkg/types"
)

// Analyzer computes session-level and temporal statistics.
type Analyzer struct {
	cfg      config.AnalysisConfig
	strategy Strategy
	log      *zap.Logger
}

// NewAnalyzer creates an analyzer. Terminal events come from the configured
// static set when present, otherwise from the three-signal heuristic.
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	var strategy Strategy
	if len(cfg.TerminalEventNames) > 0 {
		strategy = &StaticStrategy{Names: cfg.TerminalEventNames}
	} else {
		strategy = NewHeuristicStrategy(cfg)
	}
	return &Analyzer{
		cfg:      cfg,
		strategy: strategy,
		log:      logging.Named("temporal"),
	}
}

// WithStrategy swaps the terminal-event detection strategy.
func (a *Analyzer) WithStrategy(s Strategy) *Analyzer {
	a.strategy = s
	return a
}

// DetectTerminals classifies the terminal-event set for the stream. Exposed
// separately so other analyses can share the set before Analyze runs.
func (a *Analyzer) DetectTerminals(events []types.Event, sessions []types.Session) []types.TerminalEvent {
	return a.strategy.Terminals(ComputeSignals(events, sessions))
}

// Result carries session statistics, temporal patterns and non-fatal
// degradation warnings.
type Result struct {
	Sessions     types.SessionStats
	TimePatterns types.TimePatterns
	Warnings     []string
}

// Analyze computes all temporal outputs. terminals is the set produced by
// DetectTerminals; it feeds the incomplete-session rate.
func (a *Analyzer) Analyze(ctx context.Context, events []types.Event, sessions []types.Session, terminals []types.TerminalEvent) (*Result, error) {
	res := &Result{}
	sessStats, warnings := a.sessionStats(sessions, terminals)
	res.Sessions = sessStats

	tp, tpWarnings, err := a.timePatterns(ctx, events)
	if err != nil {
		return nil, err
	}
	res.TimePatterns = tp
	res.Warnings = append(warnings, tpWarnings...)

	a.log.Debug("temporal analysis complete",
		zap.Int64("sessions", res.Sessions.TotalSessions),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}
