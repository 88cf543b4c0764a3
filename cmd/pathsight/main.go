// Package main implements the unified pathsight binary.
// It can run a one-shot profiling job, the HTTP API server, or both,
// selected with the --mode flag.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/pathsight/pathsight/internal/app"
	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/report"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	// Parse command line flags
	var (
		configFile  string
		dataDir     string
		mode        string
		inputPath   string
		httpAddr    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&mode, "mode", "all", "Service mode: all, profile, serve")
	flag.StringVar(&inputPath, "input", "", "Event stream file to profile (CSV or JSONL)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP address for the API server")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "PathSight - Event Stream Analysis Engine\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pathsight [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pathsight --mode profile --input events.csv\n")
		fmt.Fprintf(os.Stderr, "  pathsight --mode serve --data-dir /data/pathsight\n")
		fmt.Fprintf(os.Stderr, "  pathsight --config /etc/pathsight/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PATHSIGHT_MODE            Service mode (all, profile, serve)\n")
		fmt.Fprintf(os.Stderr, "  PATHSIGHT_DATA_DIR        Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  PATHSIGHT_INPUT_PATH      Event stream file to profile\n")
		fmt.Fprintf(os.Stderr, "  PATHSIGHT_HTTP_ADDR       HTTP address for the API server\n")
		fmt.Fprintf(os.Stderr, "  PATHSIGHT_STORAGE_TYPE    Storage type (local, s3)\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("pathsight version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := loadConfig(configFile, dataDir, mode, inputPath, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init(cfg.Logging.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer logging.Sync()

	// Print startup banner
	printBanner(cfg)

	// Create and start the application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	// One-shot profiling run. In all mode the run is skipped when no input
	// is configured; in profile mode that is a usage error.
	if cfg.ShouldRunProfile() && cfg.Input.Path != "" {
		rep, err := application.RunProfile(ctx, cfg.Input.Path)
		if err != nil {
			application.Stop(context.Background())
			log.Fatalf("Profile run failed: %v", err)
		}
		fmt.Println(report.Summary(rep))
	} else if cfg.Mode == config.ModeProfile {
		application.Stop(context.Background())
		log.Fatalf("No input file: set --input or PATHSIGHT_INPUT_PATH")
	}

	// Keep serving until a shutdown signal arrives
	if cfg.ShouldRunServe() {
		if err := application.WaitForShutdown(ctx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, mode, inputPath, httpAddr string) (*config.Config, error) {
	// Load .env if present, so local development picks up PATHSIGHT_* vars
	_ = godotenv.Load()

	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if mode != "" {
		cfg.Mode = config.Mode(mode)
	}
	if inputPath != "" {
		cfg.Input.Path = inputPath
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("==============================================")
	log.Printf("  PATHSIGHT - Event Stream Analysis Engine")
	log.Printf("==============================================")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Mode:     %s", cfg.Mode)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("")

	if cfg.ShouldRunProfile() {
		log.Printf("Profile Run:")
		log.Printf("  Input:   %s", cfg.Input.Path)
		log.Printf("  Format:  %s", cfg.Input.Format)
		log.Printf("  Policy:  %s", cfg.Analysis.SessionPolicy)
	}

	if cfg.ShouldRunServe() {
		log.Printf("API Service:")
		log.Printf("  HTTP: %s", cfg.HTTP.Addr)
		if cfg.Catalog.RetentionDays > 0 {
			log.Printf("  Retention: %d days", cfg.Catalog.RetentionDays)
		}
	}

	log.Printf("")
}
