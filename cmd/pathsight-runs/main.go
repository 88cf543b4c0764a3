// Package main implements the pathsight-runs binary.
// It inspects the run catalog and prints stored analysis reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/report"
	"github.com/pathsight/pathsight/internal/retention"
	"github.com/pathsight/pathsight/internal/storage"
)

// Config holds the tool configuration.
type Config struct {
	ConfigFile string
	DataDir    string
	Show       string
	Latest     bool
	Limit      int
	JSON       bool
	Prune      bool
	Verify     bool
}

func main() {
	cfg := parseFlags()

	// Load .env if present, so local development picks up PATHSIGHT_* vars
	_ = godotenv.Load()

	appCfg, err := buildConfig(cfg.ConfigFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.DataDir != "" {
		appCfg.DataDir = cfg.DataDir
	}
	appCfg.Resolve()

	// Open run catalog
	cat, err := catalog.New(appCfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to open run catalog: %v", err)
	}
	defer cat.Close()

	ctx := context.Background()

	switch {
	case cfg.Prune:
		pruneRuns(ctx, appCfg, cat)
	case cfg.Verify:
		verifyRuns(ctx, appCfg, cat)
	case cfg.Show != "":
		showRun(ctx, appCfg, cat, cfg.Show, cfg.JSON)
	case cfg.Latest:
		rec, err := cat.Latest(ctx)
		if err != nil {
			log.Fatalf("Failed to resolve latest run: %v", err)
		}
		showRun(ctx, appCfg, cat, rec.RunID, cfg.JSON)
	default:
		listRuns(ctx, cat, cfg.Limit)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&cfg.DataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&cfg.Show, "show", "", "Print the stored report for a run ID")
	flag.BoolVar(&cfg.Latest, "latest", false, "Print the stored report for the most recent run")
	flag.IntVar(&cfg.Limit, "limit", 20, "Maximum number of runs to list")
	flag.BoolVar(&cfg.JSON, "json", false, "Print the raw report JSON instead of the summary")
	flag.BoolVar(&cfg.Prune, "prune", false, "Delete runs past the retention TTL and sweep their artifacts")
	flag.BoolVar(&cfg.Verify, "verify", false, "Cross-check the run catalog against object storage")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pathsight-runs - Inspect PathSight runs\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pathsight-runs [options]\n\n")
		fmt.Fprintf(os.Stderr, "With no options, lists the most recent runs.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	return cfg
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

// listRuns prints a fixed-width table of the most recent runs.
func listRuns(ctx context.Context, cat catalog.Catalog, limit int) {
	runs, err := cat.List(ctx, limit)
	if err != nil {
		log.Fatalf("Failed to list runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return
	}

	fmt.Printf("%-28s %-10s %10s %10s %10s  %s\n",
		"RUN ID", "STATUS", "EVENTS", "USERS", "SESSIONS", "CREATED")
	for _, rec := range runs {
		fmt.Printf("%-28s %-10s %10d %10d %10d  %s\n",
			rec.RunID,
			rec.Status,
			rec.EventCount,
			rec.UserCount,
			rec.SessionCount,
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	fmt.Printf("\n%d run(s)\n", len(runs))
}

// showRun prints the stored report for a single run.
func showRun(ctx context.Context, appCfg *config.Config, cat catalog.Catalog, runID string, rawJSON bool) {
	// Confirm the run exists before touching object storage.
	rec, err := cat.Get(ctx, runID)
	if err != nil {
		log.Fatalf("Failed to look up run %s: %v", runID, err)
	}

	store, err := newStorage(ctx, appCfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	reports := report.NewStore(store)

	if rawJSON {
		data, err := reports.ReadRaw(ctx, rec.RunID)
		if err != nil {
			log.Fatalf("Failed to read report for run %s: %v", rec.RunID, err)
		}
		os.Stdout.Write(data)
		fmt.Println()
		return
	}

	rep, err := reports.Read(ctx, rec.RunID)
	if err != nil {
		log.Fatalf("Failed to read report for run %s: %v", rec.RunID, err)
	}
	fmt.Println(report.Summary(rep))
}

// pruneRuns runs one retention cycle in the foreground.
func pruneRuns(ctx context.Context, appCfg *config.Config, cat catalog.Catalog) {
	if appCfg.Catalog.RetentionDays <= 0 {
		log.Fatalf("Retention is disabled (retention_days = %d)", appCfg.Catalog.RetentionDays)
	}

	store, err := newStorage(ctx, appCfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	ttl := time.Duration(appCfg.Catalog.RetentionDays) * 24 * time.Hour
	pending, err := cat.CountExpired(ctx, ttl)
	if err != nil {
		log.Fatalf("Failed to count expired runs: %v", err)
	}
	if pending == 0 {
		fmt.Println("No runs past retention.")
		return
	}

	retention.NewDaemon(retention.Config{TTL: ttl}, cat, store).RunOnce(ctx)
	fmt.Printf("Pruned %d run(s) older than %s.\n", pending, ttl)
}

// verifyRuns cross-checks the catalog against object storage and reports drift.
func verifyRuns(ctx context.Context, appCfg *config.Config, cat catalog.Catalog) {
	store, err := newStorage(ctx, appCfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	rep, err := retention.Reconcile(ctx, cat, store)
	if err != nil {
		log.Fatalf("Failed to reconcile catalog and storage: %v", err)
	}

	fmt.Printf("Checked %d run(s) against %d object(s).\n", rep.TotalRuns, rep.TotalObjects)
	if !rep.HasIssues() {
		fmt.Println("Catalog and storage agree.")
		return
	}

	for _, d := range rep.DanglingRuns {
		fmt.Printf("dangling: run %s is missing %s\n", d.RunID, d.ObjectPath)
	}
	for _, obj := range rep.OrphanedObjects {
		fmt.Printf("orphan:   %s belongs to no cataloged run\n", obj)
	}
	os.Exit(1)
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
