// Package config provides unified configuration for all PathSight services.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	perrors "github.com/pathsight/pathsight/internal/errors"
)

// Mode represents the service mode to run.
type Mode string

const (
	ModeAll     Mode = "all"
	ModeProfile Mode = "profile"
	ModeServe   Mode = "serve"
)

// Session reconstruction policies.
const (
	PolicyBoundary = "boundary"
	PolicyTimeGap  = "time_gap"
)

// Config holds the unified configuration for all PathSight services.
type Config struct {
	// Mode specifies which services to run: all, profile, serve
	Mode Mode `json:"mode" yaml:"mode"`

	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// HTTP configuration
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Input configuration
	Input InputConfig `json:"input" yaml:"input"`

	// Analysis configuration
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`

	// Storage configuration
	Storage StorageConfig `json:"storage" yaml:"storage"`

	// Catalog configuration
	Catalog CatalogConfig `json:"catalog" yaml:"catalog"`

	// Logging configuration
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	// Addr is the HTTP address for the API server
	Addr string `json:"addr" yaml:"addr"`

	// ReadTimeout is the HTTP read timeout
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the HTTP write timeout
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the HTTP idle timeout
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
}

// InputConfig holds event stream input configuration.
type InputConfig struct {
	// Path is the event stream file to profile
	Path string `json:"path" yaml:"path"`

	// Format is the input format: csv, jsonl, auto
	Format string `json:"format" yaml:"format"`

	// OnMalformed controls handling of unparseable records: skip, abort
	OnMalformed string `json:"on_malformed" yaml:"on_malformed"`

	// DropExactDuplicates suppresses records identical in user, timestamp and name
	DropExactDuplicates bool `json:"drop_exact_duplicates" yaml:"drop_exact_duplicates"`

	// UserColumn overrides user column detection (empty = auto-detect)
	UserColumn string `json:"user_column" yaml:"user_column"`

	// TimeColumn overrides timestamp column detection (empty = auto-detect)
	TimeColumn string `json:"time_column" yaml:"time_column"`

	// EventColumn overrides event name column detection (empty = auto-detect)
	EventColumn string `json:"event_column" yaml:"event_column"`
}

// AnalysisConfig holds analysis tuning parameters.
type AnalysisConfig struct {
	// SessionPolicy selects session reconstruction: boundary, time_gap
	SessionPolicy string `json:"session_policy" yaml:"session_policy"`

	// SessionGapMinutes is the inactivity gap for the time_gap policy
	SessionGapMinutes int `json:"session_gap_minutes" yaml:"session_gap_minutes"`

	// SystemEventNames are the lifecycle markers that open sessions
	SystemEventNames []string `json:"system_event_names" yaml:"system_event_names"`

	// IncludeBoundaryEvents keeps system events inside mined sequences
	IncludeBoundaryEvents bool `json:"include_boundary_events" yaml:"include_boundary_events"`

	// TerminalEventNames pins the terminal set, bypassing the heuristic (empty = heuristic)
	TerminalEventNames []string `json:"terminal_event_names" yaml:"terminal_event_names"`

	// TerminalRarityThreshold is the max event share for terminal candidates
	TerminalRarityThreshold float64 `json:"terminal_event_rarity_threshold" yaml:"terminal_event_rarity_threshold"`

	// TerminalLastRatioThreshold is the min session-final ratio for terminal candidates
	TerminalLastRatioThreshold float64 `json:"terminal_event_last_ratio_threshold" yaml:"terminal_event_last_ratio_threshold"`

	// TerminalSuccessKeywords mark conversion-like event names
	TerminalSuccessKeywords []string `json:"terminal_success_keywords" yaml:"terminal_success_keywords"`

	// HighExitThreshold is the min session-final ratio flagging a high-exit state
	HighExitThreshold float64 `json:"high_exit_threshold" yaml:"high_exit_threshold"`

	// EdgeProbabilityThreshold is the min transition probability for graph edges
	EdgeProbabilityThreshold float64 `json:"edge_probability_threshold" yaml:"edge_probability_threshold"`

	// MinSequenceLength is the shortest mined pattern (2–10)
	MinSequenceLength int `json:"min_sequence_length" yaml:"min_sequence_length"`

	// MaxSequenceLength is the longest mined pattern (2–10)
	MaxSequenceLength int `json:"max_sequence_length" yaml:"max_sequence_length"`

	// MinSupportRatio is the min share of sessions containing a pattern
	MinSupportRatio float64 `json:"min_support_ratio" yaml:"min_support_ratio"`

	// VelocityWindowMinutes is the sliding window for event velocity
	VelocityWindowMinutes int `json:"velocity_window_minutes" yaml:"velocity_window_minutes"`

	// TopTransitions caps the most-common transition list
	TopTransitions int `json:"top_transitions" yaml:"top_transitions"`

	// TopPatterns caps the mined pattern list
	TopPatterns int `json:"top_patterns" yaml:"top_patterns"`

	// Workers is the number of parallel per-user analysis workers
	Workers int `json:"workers" yaml:"workers"`
}

// StorageConfig holds report artifact storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	// Bucket is the S3 bucket name
	Bucket string `json:"bucket" yaml:"bucket"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is the S3 endpoint (for S3-compatible storage)
	Endpoint string `json:"endpoint" yaml:"endpoint"`
}

// CatalogConfig holds run catalog configuration.
type CatalogConfig struct {
	// Path is the catalog database path (empty = DataDir/catalog.db)
	Path string `json:"path" yaml:"path"`

	// RetentionDays is the days before old runs are pruned (0 = keep forever)
	RetentionDays int `json:"retention_days" yaml:"retention_days"`

	// PruneInterval is the interval between retention sweeps
	PruneInterval time.Duration `json:"prune_interval" yaml:"prune_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Environment selects encoder defaults: development, production
	Environment string `json:"environment" yaml:"environment"`

	// Level is the minimum log level: debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// Format is the output format: json, console
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		Mode:    ModeAll,
		DataDir: "./data/pathsight",
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Input: InputConfig{
			Path:                "",
			Format:              "auto",
			OnMalformed:         "skip",
			DropExactDuplicates: true,
		},
		Analysis: AnalysisConfig{
			SessionPolicy:     PolicyBoundary,
			SessionGapMinutes: 30,
			SystemEventNames: []string{
				"Session Started",
				"Journey Started",
				"Journey Ended",
				"App Installed",
				"User Login",
				"Push Click",
			},
			IncludeBoundaryEvents:      true,
			TerminalEventNames:         nil,
			TerminalRarityThreshold:    0.02,
			TerminalLastRatioThreshold: 0.9,
			TerminalSuccessKeywords: []string{
				"success", "complete", "confirm", "done", "finish",
			},
			HighExitThreshold:        0.5,
			EdgeProbabilityThreshold: 0.01,
			MinSequenceLength:        2,
			MaxSequenceLength:        5,
			MinSupportRatio:          0.03,
			VelocityWindowMinutes:    5,
			TopTransitions:           20,
			TopPatterns:              50,
			Workers:                  8,
		},
		Storage: StorageConfig{
			Type: "local",
			Path: "",
		},
		Catalog: CatalogConfig{
			Path:          "",
			RetentionDays: 30,
			PruneInterval: 1 * time.Hour,
		},
		Logging: LoggingConfig{
			Environment: "development",
			Level:       "info",
			Format:      "console",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/pathsight"
	}

	// Resolve storage path
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "storage")
	}

	// Resolve catalog path
	if c.Catalog.Path == "" {
		c.Catalog.Path = filepath.Join(c.DataDir, "catalog.db")
	}

	if c.Analysis.Workers <= 0 {
		c.Analysis.Workers = 8
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeAll, ModeProfile, ModeServe:
		// Valid modes
	default:
		return perrors.NewConfigError("invalid mode: " + string(c.Mode) + " (must be all, profile, or serve)")
	}

	if c.DataDir == "" {
		return perrors.NewConfigError("data_dir is required")
	}

	if c.Input.Format != "auto" && c.Input.Format != "csv" && c.Input.Format != "jsonl" {
		return perrors.NewConfigError("invalid input format: " + c.Input.Format + " (must be auto, csv, or jsonl)")
	}

	if c.Input.OnMalformed != "skip" && c.Input.OnMalformed != "abort" {
		return perrors.NewConfigError("invalid on_malformed: " + c.Input.OnMalformed + " (must be skip or abort)")
	}

	a := &c.Analysis
	if a.SessionPolicy != PolicyBoundary && a.SessionPolicy != PolicyTimeGap {
		return perrors.NewConfigError("invalid session_policy: " + a.SessionPolicy + " (must be boundary or time_gap)")
	}
	if a.SessionPolicy == PolicyTimeGap && a.SessionGapMinutes <= 0 {
		return perrors.NewConfigError("session_gap_minutes must be positive for the time_gap policy")
	}
	if a.SessionPolicy == PolicyBoundary && len(a.SystemEventNames) == 0 {
		return perrors.NewConfigError("system_event_names must not be empty for the boundary policy")
	}
	if a.TerminalRarityThreshold <= 0 || a.TerminalRarityThreshold >= 1 {
		return perrors.NewConfigError("terminal_event_rarity_threshold must be in (0, 1)")
	}
	if a.TerminalLastRatioThreshold <= 0 || a.TerminalLastRatioThreshold > 1 {
		return perrors.NewConfigError("terminal_event_last_ratio_threshold must be in (0, 1]")
	}
	if a.HighExitThreshold <= 0 || a.HighExitThreshold > 1 {
		return perrors.NewConfigError("high_exit_threshold must be in (0, 1]")
	}
	if a.EdgeProbabilityThreshold < 0 || a.EdgeProbabilityThreshold >= 1 {
		return perrors.NewConfigError("edge_probability_threshold must be in [0, 1)")
	}
	if a.MinSequenceLength < 2 || a.MinSequenceLength > 10 {
		return perrors.NewConfigError("min_sequence_length must be between 2 and 10")
	}
	if a.MaxSequenceLength < 2 || a.MaxSequenceLength > 10 {
		return perrors.NewConfigError("max_sequence_length must be between 2 and 10")
	}
	if a.MinSequenceLength > a.MaxSequenceLength {
		return perrors.NewConfigError("min_sequence_length must not exceed max_sequence_length")
	}
	if a.MinSupportRatio <= 0 || a.MinSupportRatio > 1 {
		return perrors.NewConfigError("min_support_ratio must be in (0, 1]")
	}
	if a.VelocityWindowMinutes <= 0 {
		return perrors.NewConfigError("velocity_window_minutes must be positive")
	}
	if a.TopTransitions <= 0 || a.TopPatterns <= 0 {
		return perrors.NewConfigError("top_transitions and top_patterns must be positive")
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return perrors.NewConfigError("invalid storage type: " + c.Storage.Type + " (must be local or s3)")
	}
	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return perrors.NewConfigError("s3.bucket is required when storage type is s3")
	}

	if c.Catalog.RetentionDays < 0 {
		return perrors.NewConfigError("catalog.retention_days must not be negative")
	}

	return nil
}

// ShouldRunProfile returns true if a one-shot profile run should execute.
func (c *Config) ShouldRunProfile() bool {
	return c.Mode == ModeAll || c.Mode == ModeProfile
}

// ShouldRunServe returns true if the HTTP API server should run.
func (c *Config) ShouldRunServe() bool {
	return c.Mode == ModeAll || c.Mode == ModeServe
}

// SessionGap returns the time_gap policy inactivity window as a duration.
func (c *Config) SessionGap() time.Duration {
	return time.Duration(c.Analysis.SessionGapMinutes) * time.Minute
}

// VelocityWindow returns the velocity sliding window as a duration.
func (c *Config) VelocityWindow() time.Duration {
	return time.Duration(c.Analysis.VelocityWindowMinutes) * time.Minute
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCategoryValidation, perrors.CodeInvalidConfig, "failed to read config file", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, perrors.Wrap(perrors.ErrCategoryValidation, perrors.CodeInvalidConfig, "failed to parse YAML config", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, perrors.Wrap(perrors.ErrCategoryValidation, perrors.CodeInvalidConfig, "failed to parse JSON config", err)
		}
	default:
		return nil, perrors.NewConfigError("unsupported config file format: " + ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the PATHSIGHT_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("PATHSIGHT_MODE"); v != "" {
		cfg.Mode = Mode(v)
	}
	if v := os.Getenv("PATHSIGHT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// HTTP configuration
	if v := os.Getenv("PATHSIGHT_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	// Input configuration
	if v := os.Getenv("PATHSIGHT_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("PATHSIGHT_INPUT_FORMAT"); v != "" {
		cfg.Input.Format = v
	}
	if v := os.Getenv("PATHSIGHT_INPUT_ON_MALFORMED"); v != "" {
		cfg.Input.OnMalformed = v
	}
	if v := os.Getenv("PATHSIGHT_INPUT_DROP_EXACT_DUPLICATES"); v != "" {
		cfg.Input.DropExactDuplicates = v == "true" || v == "1"
	}

	// Analysis configuration
	if v := os.Getenv("PATHSIGHT_ANALYSIS_SESSION_POLICY"); v != "" {
		cfg.Analysis.SessionPolicy = v
	}
	if v := os.Getenv("PATHSIGHT_ANALYSIS_SESSION_GAP_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.SessionGapMinutes = n
		}
	}
	if v := os.Getenv("PATHSIGHT_ANALYSIS_SYSTEM_EVENT_NAMES"); v != "" {
		cfg.Analysis.SystemEventNames = splitList(v)
	}
	if v := os.Getenv("PATHSIGHT_ANALYSIS_MIN_SUPPORT_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.MinSupportRatio = f
		}
	}
	if v := os.Getenv("PATHSIGHT_ANALYSIS_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.Workers = n
		}
	}

	// Storage configuration
	if v := os.Getenv("PATHSIGHT_STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("PATHSIGHT_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PATHSIGHT_S3_BUCKET"); v != "" {
		cfg.Storage.S3.Bucket = v
	}
	if v := os.Getenv("PATHSIGHT_S3_REGION"); v != "" {
		cfg.Storage.S3.Region = v
	}
	if v := os.Getenv("PATHSIGHT_S3_ENDPOINT"); v != "" {
		cfg.Storage.S3.Endpoint = v
	}

	// Catalog configuration
	if v := os.Getenv("PATHSIGHT_CATALOG_PATH"); v != "" {
		cfg.Catalog.Path = v
	}
	if v := os.Getenv("PATHSIGHT_CATALOG_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Catalog.RetentionDays = n
		}
	}
	if v := os.Getenv("PATHSIGHT_CATALOG_PRUNE_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Catalog.PruneInterval = d
		}
	}

	// Logging configuration
	if v := os.Getenv("PATHSIGHT_LOG_ENVIRONMENT"); v != "" {
		cfg.Logging.Environment = v
	}
	if v := os.Getenv("PATHSIGHT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PATHSIGHT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

// splitList splits a comma-separated environment value into trimmed items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.Catalog.Path),
	}
	if c.Storage.Type == "local" {
		dirs = append(dirs, c.Storage.Path)
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return perrors.Wrap(perrors.ErrCategoryValidation, perrors.CodeInvalidConfig, "failed to create directory "+dir, err)
		}
	}

	return nil
}
