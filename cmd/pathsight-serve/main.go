// Package main implements the pathsight-serve binary.
// It runs the HTTP API server and the run retention daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

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
)

func main() {
	var (
		configFile    string
		dataDir       string
		httpAddr      string
		retentionDays int
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP server address")
	flag.IntVar(&retentionDays, "retention-days", -1, "Days before old runs are pruned (0 = keep forever)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pathsight-serve - PathSight HTTP API server\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pathsight-serve [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	// Load .env if present, so local development picks up PATHSIGHT_* vars
	_ = godotenv.Load()

	cfg, err := buildConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Mode = config.ModeServe
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}
	if retentionDays >= 0 {
		cfg.Catalog.RetentionDays = retentionDays
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create directories: %v", err)
	}

	logging.Init(cfg.Logging.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer logging.Sync()

	log.Printf("Starting pathsight-serve...")
	log.Printf("HTTP address: %s", cfg.HTTP.Addr)

	ctx := context.Background()

	// Initialize object storage
	store, err := newStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage initialized: type=%s", cfg.Storage.Type)

	// Initialize run statistics
	stats := observability.NewRunStats(24 * time.Hour)

	// Initialize run catalog
	cat, err := catalog.New(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to initialize run catalog: %v", err)
	}
	defer cat.Close()
	catWithStats := cat.WithStats(stats)
	log.Printf("Run catalog initialized at: %s", cfg.Catalog.Path)

	// Initialize pipeline components
	reports := report.NewStore(store)
	loader := ingest.NewLoader(cfg.Input, cfg.Analysis.SystemEventNames)
	engine := profiler.NewEngine(cfg.Analysis).WithStats(stats)

	// Initialize shutdown manager
	shutdownMgr := server.NewShutdownManager(server.DefaultShutdownConfig())

	// Start retention daemon
	if cfg.Catalog.RetentionDays > 0 {
		retCfg := retention.DefaultConfig()
		retCfg.TTL = time.Duration(cfg.Catalog.RetentionDays) * 24 * time.Hour
		if cfg.Catalog.PruneInterval > 0 {
			retCfg.CheckInterval = cfg.Catalog.PruneInterval
		}
		daemon := retention.NewDaemon(retCfg, catWithStats, store).WithStats(stats)
		if err := daemon.Start(ctx); err != nil {
			log.Fatalf("Failed to start retention daemon: %v", err)
		}
		shutdownMgr.RegisterCloser(server.CloserFunc(daemon.Stop))
		log.Printf("Retention daemon started: %d days, every %v", cfg.Catalog.RetentionDays, retCfg.CheckInterval)
	}

	// Create HTTP handlers
	profileHandler := httpapi.NewProfileHandler(loader, engine, reports, catWithStats, cfg.Analysis).WithStats(stats)
	runsHandler := httpapi.NewRunsHandler(catWithStats)
	reportsHandler := httpapi.NewReportsHandler(reports, catWithStats).WithStats(stats)
	statsHandler := httpapi.NewStatsHandler(catWithStats, stats)

	// Setup HTTP server with middleware
	mux := http.NewServeMux()
	middleware := httpapi.ChainMiddleware(
		server.ShutdownMiddleware(shutdownMgr),
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
	mux.HandleFunc("/health", healthHandler)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Serve until a shutdown signal arrives
	graceful := server.NewGracefulHTTPServer(httpServer, shutdownMgr)

	go func() {
		if err := shutdownMgr.ListenForSignals(context.Background()); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	log.Printf("HTTP server listening on %s", cfg.HTTP.Addr)
	if err := graceful.ListenAndServe(); err != nil {
		log.Fatalf("HTTP server error: %v", err)
	}

	log.Printf("pathsight-serve stopped")
}

// buildConfig loads defaults or a config file, then applies the environment.
func buildConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)
	return cfg, nil
}

// newStorage initializes local or S3 object storage per the configuration.
func newStorage(ctx context.Context, cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Type {
	case "local":
		return storage.NewLocalStorage(cfg.Storage.Path)
	case "s3":
		s3Cfg := storage.DefaultS3Config()
		if cfg.Storage.S3.Region != "" {
			s3Cfg.Region = cfg.Storage.S3.Region
		}
		if cfg.Storage.S3.Endpoint != "" {
			s3Cfg.Endpoint = cfg.Storage.S3.Endpoint
			s3Cfg.UsePathStyle = true
		}
		return storage.NewS3Storage(ctx, cfg.Storage.S3.Bucket, s3Cfg)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"pathsight-serve"}`))
}
