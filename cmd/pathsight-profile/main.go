// Package main implements the pathsight-profile binary.
// It runs a single profiling pass over an event export and prints the
// result, persisting the report like any other run.
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

func main() {
	var (
		configFile  string
		dataDir     string
		inputPath   string
		format      string
		onMalformed string
		dedup       bool
		asJSON      bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&inputPath, "input", "", "Event stream file to profile (required)")
	flag.StringVar(&format, "format", "", "Input format: auto, csv, jsonl")
	flag.StringVar(&onMalformed, "on-malformed", "", "Malformed record handling: skip, abort")
	flag.BoolVar(&dedup, "dedup", false, "Drop exact duplicate records")
	flag.BoolVar(&asJSON, "json", false, "Print the full report as JSON instead of a summary")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "pathsight-profile - one-shot event stream profiling\n\n")
		fmt.Fprintf(os.Stderr, "Usage: pathsight-profile --input events.csv [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if inputPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := buildConfig(configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.Mode = config.ModeProfile
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	cfg.Input.Path = inputPath
	if format != "" {
		cfg.Input.Format = format
	}
	if onMalformed != "" {
		cfg.Input.OnMalformed = onMalformed
	}
	if dedup {
		cfg.Input.DropExactDuplicates = true
	}

	logging.Init(cfg.Logging.Environment, cfg.Logging.Level, cfg.Logging.Format)
	defer logging.Sync()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
	defer application.Stop(context.Background())

	rep, err := application.RunProfile(ctx, cfg.Input.Path)
	if err != nil {
		log.Fatalf("Profile run failed: %v", err)
	}

	if asJSON {
		data, err := report.Encode(rep)
		if err != nil {
			log.Fatalf("Failed to encode report: %v", err)
		}
		os.Stdout.Write(data)
		fmt.Println()
		return
	}

	fmt.Println(report.Summary(rep))
}

// buildConfig loads defaults or a config file, then applies the environment.
func buildConfig(configFile string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	_ = godotenv.Load()

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
