// Package retention removes expired profiling runs and their stored report
// artifacts on a fixed interval.
package retention

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/internal/report"
	"github.com/pathsight/pathsight/internal/storage"
)

// Config holds configuration for the retention daemon.
type Config struct {
	// TTL is the age past which runs are removed.
	TTL time.Duration

	// CheckInterval is how often the daemon looks for expired runs.
	CheckInterval time.Duration

	// SweepConcurrency is the upper bound on parallel artifact deletions
	// per cycle. The effective concurrency adapts to storage health.
	SweepConcurrency int

	// MinSweepConcurrency is the floor the backoff never goes below.
	MinSweepConcurrency int

	// FailureThreshold is the deletion failure rate above which the sweep
	// backs off.
	FailureThreshold float64

	// FailureWindow is how long deletion outcomes count toward the rate.
	FailureWindow time.Duration
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() Config {
	return Config{
		TTL:                 30 * 24 * time.Hour,
		CheckInterval:       time.Hour,
		SweepConcurrency:    8,
		MinSweepConcurrency: 1,
		FailureThreshold:    0.05,
		FailureWindow:       10 * time.Minute,
	}
}

// Daemon prunes expired runs in the background.
type Daemon struct {
	config       Config
	catalog      catalog.Catalog
	sweeper      *storage.Sweeper
	backpressure *Backpressure
	stats        *observability.RunStats
	log          *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewDaemon creates a new retention daemon.
func NewDaemon(config Config, cat catalog.Catalog, store storage.ObjectStorage) *Daemon {
	if config.TTL <= 0 {
		config.TTL = 30 * 24 * time.Hour
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Hour
	}
	if config.SweepConcurrency <= 0 {
		config.SweepConcurrency = 8
	}

	return &Daemon{
		config:  config,
		catalog: cat,
		sweeper: storage.NewSweeper(store, config.SweepConcurrency),
		backpressure: NewBackpressure(
			config.SweepConcurrency,
			config.MinSweepConcurrency,
			config.FailureThreshold,
			config.FailureWindow,
		),
		log: logging.Named("retention"),
	}
}

// WithStats attaches a run statistics tracker.
func (d *Daemon) WithStats(stats *observability.RunStats) *Daemon {
	d.stats = stats
	return d
}

// Start begins the retention loop. It runs until the context is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("retention: daemon is already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.running = true
	d.done = make(chan struct{})
	d.mu.Unlock()

	go d.run(ctx)
	return nil
}

// Stop gracefully stops the retention daemon.
func (d *Daemon) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}

	d.cancel()
	<-d.done
	d.running = false
	return nil
}

// run is the main retention loop.
func (d *Daemon) run(ctx context.Context) {
	defer close(d.done)

	// Run immediately on start
	d.runOnce(ctx)

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

// runOnce performs a single retention cycle: expire catalog rows, then sweep
// the orphaned report artifacts from object storage. Rows are only deleted
// after the backpressure check, so a paused cycle leaves the catalog intact
// instead of stranding artifacts.
func (d *Daemon) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	pending, err := d.catalog.CountExpired(ctx, d.config.TTL)
	if err != nil {
		d.log.Error("failed to count expired runs", zap.Error(err))
		return
	}
	if pending == 0 {
		return
	}
	if d.backpressure.ShouldPause(int(pending)) {
		d.log.Warn("retention cycle paused, deletions are failing",
			zap.Int64("pending_runs", pending),
			zap.Float64("failure_rate", d.backpressure.FailureRate()))
		return
	}

	expired, err := d.catalog.DeleteExpired(ctx, d.config.TTL)
	if err != nil {
		d.log.Error("failed to expire runs", zap.Error(err))
		return
	}
	if len(expired) == 0 {
		return
	}

	d.backpressure.AdjustConcurrency()
	concurrency := d.backpressure.Concurrency()

	result := d.sweeper.SweepN(ctx, artifactPaths(expired), concurrency)
	d.backpressure.RecordSweep(result.Deleted, len(result.Errors))
	for path, serr := range result.Errors {
		d.log.Warn("failed to delete artifact", zap.String("path", path), zap.Error(serr))
	}

	if d.stats != nil {
		d.stats.AddCounter(observability.CounterCatalogPruned, int64(len(expired)))
	}
	d.log.Info("retention cycle complete",
		zap.Int("runs_pruned", len(expired)),
		zap.Int("artifacts_deleted", result.Deleted),
		zap.Int("sweep_concurrency", concurrency))
}

// RunOnce triggers a single retention cycle immediately.
func (d *Daemon) RunOnce(ctx context.Context) {
	d.runOnce(ctx)
}

// TTL returns the configured time-to-live for runs.
func (d *Daemon) TTL() time.Duration {
	return d.config.TTL
}

// artifactPaths collects the object paths to sweep for a set of expired
// runs.
func artifactPaths(expired []*catalog.RunRecord) []string {
	var paths []string
	for _, rec := range expired {
		paths = append(paths, recordPaths(rec)...)
	}
	return paths
}

// recordPaths returns the object paths a run owns. Recorded paths win; runs
// registered without them fall back to the conventional layout.
func recordPaths(rec *catalog.RunRecord) []string {
	if rec.CompressedPath == "" && rec.JSONPath == "" {
		return report.ArtifactPaths(rec.RunID)
	}
	var paths []string
	if rec.CompressedPath != "" {
		paths = append(paths, rec.CompressedPath)
	}
	if rec.JSONPath != "" {
		paths = append(paths, rec.JSONPath)
	}
	return paths
}
