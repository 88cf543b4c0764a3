// Package app provides the unified application lifecycle for PathSight.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	httpapi "github.com/pathsight/pathsight/internal/api/http"
	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/ingest"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/internal/profiler"
	"github.com/pathsight/pathsight/internal/report"
	"github.com/pathsight/pathsight/internal/retention"
	"github.com/pathsight/pathsight/internal/server"
	"github.com/pathsight/pathsight/internal/storage"
	"github.com/pathsight/pathsight/pkg/types"
)

// statsWindow bounds how long event-frequency entries are retained.
const statsWindow = 24 * time.Hour

// App manages the PathSight service lifecycle.
type App struct {
	cfg *config.Config
	log *zap.Logger

	// Shared resources
	storage  storage.ObjectStorage
	catalog  catalog.Catalog
	reports  *report.Store
	loader   *ingest.Loader
	engine   *profiler.Engine
	stats    *observability.RunStats
	shutdown *server.ShutdownManager

	// Serve mode
	apiServer       *http.Server
	retentionDaemon *retention.Daemon

	// Lifecycle
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new App with the given configuration.
func New(cfg *config.Config) (*App, error) {
	// Resolve paths and validate
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return &App{
		cfg: cfg,
		log: logging.Named("app"),
	}, nil
}

// Start initializes shared resources and, in serve mode, starts the API
// server and the retention sweeper.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.initSharedResources(ctx); err != nil {
		a.cleanup()
		return fmt.Errorf("failed to initialize shared resources: %w", err)
	}

	if a.cfg.ShouldRunServe() {
		if err := a.startAPIService(ctx); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start API service: %w", err)
		}
		if err := a.startRetention(ctx); err != nil {
			a.cleanup()
			return fmt.Errorf("failed to start retention daemon: %w", err)
		}
	}

	a.log.Info("pathsight started", zap.String("mode", string(a.cfg.Mode)))
	return nil
}

// initSharedResources initializes storage, the run catalog, the profiling
// engine and the shutdown manager.
func (a *App) initSharedResources(ctx context.Context) error {
	var err error

	// Initialize storage
	switch a.cfg.Storage.Type {
	case "local":
		a.storage, err = storage.NewLocalStorage(a.cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if a.cfg.Storage.S3.Region != "" {
			s3Cfg.Region = a.cfg.Storage.S3.Region
		}
		if a.cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = a.cfg.Storage.S3.Endpoint
			s3Cfg.UsePathStyle = true
		}
		a.storage, err = storage.NewS3Storage(ctx, a.cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return fmt.Errorf("unsupported storage type: %s", a.cfg.Storage.Type)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.log.Info("storage initialized", zap.String("type", a.cfg.Storage.Type))

	// Initialize run statistics
	a.stats = observability.NewRunStats(statsWindow)

	// Initialize run catalog
	cat, err := catalog.New(a.cfg.Catalog.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize run catalog: %w", err)
	}
	a.catalog = cat.WithStats(a.stats)
	a.log.Info("run catalog initialized", zap.String("path", a.cfg.Catalog.Path))

	// Initialize pipeline components
	a.reports = report.NewStore(a.storage)
	a.loader = ingest.NewLoader(a.cfg.Input, a.cfg.Analysis.SystemEventNames)
	a.engine = profiler.NewEngine(a.cfg.Analysis).WithStats(a.stats)

	// Initialize shutdown manager
	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.RegisterCloser(server.CloserFunc(func() error {
		a.closeCatalog()
		return nil
	}))

	return nil
}

// RunProfile executes a one-shot profiling run over the input file: load,
// analyze, persist artifacts and register the run in the catalog.
func (a *App) RunProfile(ctx context.Context, inputPath string) (*types.Report, error) {
	start := time.Now()

	res, err := a.loader.Load(ctx, inputPath)
	if err != nil {
		return nil, err
	}
	a.stats.RecordStage(observability.StageIngest, time.Since(start))
	a.stats.AddCounter(observability.CounterEventsParsed, int64(len(res.Events)))
	a.stats.AddCounter(observability.CounterMalformed, res.Malformed)
	a.stats.AddCounter(observability.CounterDuplicates, res.Duplicates)
	a.stats.RecordEvents(res.Events)

	rep, err := a.engine.Run(ctx, res.Events, inputPath)
	if err != nil {
		return nil, err
	}

	writeStart := time.Now()
	artifacts, err := a.reports.Write(ctx, rep)
	if err != nil {
		return nil, err
	}
	a.stats.RecordStage(observability.StageReport, time.Since(writeStart))

	cfgJSON, _ := json.Marshal(a.cfg.Analysis)
	rec := &catalog.RunRecord{
		RunID:          rep.RunID,
		CreatedAt:      rep.GeneratedAt,
		Source:         inputPath,
		Format:         res.Format,
		EventCount:     rep.BasicStats.TotalEvents,
		UserCount:      rep.BasicStats.UniqueUsers,
		SessionCount:   rep.Sessions.TotalSessions,
		DurationMS:     time.Since(start).Milliseconds(),
		Status:         catalog.StatusCompleted,
		Warnings:       rep.Warnings,
		Config:         cfgJSON,
		JSONPath:       artifacts.JSONPath,
		CompressedPath: artifacts.CompressedPath,
	}
	if err := a.catalog.Register(ctx, rec); err != nil {
		return nil, err
	}

	a.log.Info("profile run registered",
		zap.String("run_id", rep.RunID),
		zap.String("source", inputPath),
		zap.Int64("events", rec.EventCount),
		zap.Int64("duration_ms", rec.DurationMS))

	return rep, nil
}

// startAPIService starts the HTTP API server.
func (a *App) startAPIService(ctx context.Context) error {
	profileHandler := httpapi.NewProfileHandler(
		a.loader, a.engine, a.reports, a.catalog, a.cfg.Analysis,
	).WithStats(a.stats)
	runsHandler := httpapi.NewRunsHandler(a.catalog)
	reportsHandler := httpapi.NewReportsHandler(a.reports, a.catalog).WithStats(a.stats)
	statsHandler := httpapi.NewStatsHandler(a.catalog, a.stats)

	// Setup HTTP server with middleware
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(a.shutdown),
		httpapi.RecoveryMiddleware,
		httpapi.RequestIDMiddleware,
		httpapi.CorrelationIDMiddleware,
		httpapi.AccessLogMiddleware,
		httpapi.ContentTypeMiddleware,
	)
	mux.Handle("/v1/profile", middleware(profileHandler))
	mux.Handle("/v1/runs", middleware(runsHandler))
	mux.Handle("/v1/runs/", middleware(runsHandler))
	mux.Handle("/v1/reports/", middleware(reportsHandler))
	mux.Handle("/v1/stats", middleware(statsHandler))
	mux.HandleFunc("/health", a.healthHandler("pathsight"))

	a.apiServer = &http.Server{
		Addr:         a.cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	// Start HTTP server
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.log.Info("API server listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := a.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("API server error", zap.Error(err))
		}
	}()

	return nil
}

// startRetention starts the periodic catalog retention sweep. Expired runs
// are removed from the catalog and their report artifacts from storage.
func (a *App) startRetention(ctx context.Context) error {
	if a.cfg.Catalog.RetentionDays <= 0 {
		a.log.Info("catalog retention disabled, keeping runs forever")
		return nil
	}

	retCfg := retention.DefaultConfig()
	retCfg.TTL = time.Duration(a.cfg.Catalog.RetentionDays) * 24 * time.Hour
	if a.cfg.Catalog.PruneInterval > 0 {
		retCfg.CheckInterval = a.cfg.Catalog.PruneInterval
	}
	retCfg.SweepConcurrency = a.cfg.Analysis.Workers

	a.retentionDaemon = retention.NewDaemon(retCfg, a.catalog, a.storage).WithStats(a.stats)
	if err := a.retentionDaemon.Start(ctx); err != nil {
		return err
	}

	a.log.Info("retention daemon started",
		zap.Int("retention_days", a.cfg.Catalog.RetentionDays),
		zap.Duration("interval", retCfg.CheckInterval))
	return nil
}

// Stop gracefully stops all services and releases resources.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = false
	a.mu.Unlock()

	a.log.Info("initiating graceful shutdown")

	// Cancel context to signal background loops
	if a.cancel != nil {
		a.cancel()
	}

	// Stop the retention daemon first
	if a.retentionDaemon != nil {
		if err := a.retentionDaemon.Stop(); err != nil {
			a.log.Warn("retention daemon stop error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("API server shutdown error", zap.Error(err))
		}
	}

	// Wait for all goroutines to finish
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// All goroutines finished
	case <-shutdownCtx.Done():
		a.log.Warn("shutdown timeout, some goroutines may not have finished")
	}

	a.cleanup()

	a.log.Info("pathsight stopped")
	return nil
}

// cleanup releases all shared resources.
func (a *App) cleanup() {
	a.closeCatalog()
}

// closeCatalog closes the run catalog once. Both the shutdown manager and
// cleanup reach the catalog through here, so a drained server and a direct
// Stop cannot double-close it.
func (a *App) closeCatalog() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.catalog == nil {
		return
	}
	if err := a.catalog.Close(); err != nil {
		a.log.Warn("catalog close error", zap.Error(err))
	}
	a.catalog = nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown(ctx context.Context) error {
	return a.shutdown.ListenForSignals(ctx)
}

// Stats exposes the run statistics tracker, mainly for tests.
func (a *App) Stats() *observability.RunStats {
	return a.stats
}

// healthHandler returns a health check handler for the given service.
func (a *App) healthHandler(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","service":"%s","mode":"%s"}`, service, a.cfg.Mode)
	}
}
