// Package catalog manages run metadata in catalog.db.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/bloom"
	perrors "github.com/pathsight/pathsight/internal/errors"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/observability"
	"github.com/pathsight/pathsight/pkg/types"
)

// Run statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const defaultListLimit = 50

// expectedRuns sizes the bloom pre-screen; the filter degrades gracefully
// past this, it just stops short-circuiting as often.
const expectedRuns = 16384

// RunRecord is a catalog row describing one profiling run.
type RunRecord struct {
	RunID        string          `json:"run_id"`
	CreatedAt    time.Time       `json:"created_at"`
	Source       string          `json:"source,omitempty"`
	Format       string          `json:"format,omitempty"`
	EventCount   int64           `json:"event_count"`
	UserCount    int64           `json:"user_count"`
	SessionCount int64           `json:"session_count"`
	DurationMS   int64           `json:"duration_ms"`
	Status       string          `json:"status"`
	Warnings     []string        `json:"warnings,omitempty"`
	Config       json.RawMessage `json:"config,omitempty"`

	// Artifact paths in object storage.
	JSONPath       string `json:"json_path,omitempty"`
	CompressedPath string `json:"compressed_path,omitempty"`
}

// Catalog manages run records.
type Catalog interface {
	// Register adds a completed run to the catalog.
	Register(ctx context.Context, rec *RunRecord) error

	// Get retrieves a single run by ID.
	Get(ctx context.Context, runID string) (*RunRecord, error)

	// List returns the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]*RunRecord, error)

	// Latest returns the most recent run.
	Latest(ctx context.Context) (*RunRecord, error)

	// Count returns the number of cataloged runs.
	Count(ctx context.Context) (int64, error)

	// CountExpired returns the number of runs older than the TTL.
	CountExpired(ctx context.Context, ttl time.Duration) (int64, error)

	// DeleteExpired removes runs older than the TTL and returns their
	// records so the caller can sweep artifacts.
	DeleteExpired(ctx context.Context, ttl time.Duration) ([]*RunRecord, error)

	// Close closes the catalog database connections.
	Close() error
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertStmt *sql.Stmt

	// known pre-screens Get: a negative answer proves the run ID was never
	// registered, a positive one still goes to the database.
	known *bloom.Filter
	stats *observability.RunStats
	log   *zap.Logger
}

// New creates a SQLite-backed run catalog.
func New(dbPath string) (*SQLiteCatalog, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to open database", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	c := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
		known:  bloom.NewWithEstimates(expectedRuns, 0.01),
		log:    logging.Named("catalog"),
	}

	// Schema first: the write connection creates the file on fresh paths,
	// which the read-only pool needs before it can connect.
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	// Read connection pool: concurrent readers share the WAL snapshot
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&mode=ro")
	if err != nil {
		db.Close()
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to open read database", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	if _, err := readDB.Exec("PRAGMA read_uncommitted = true"); err != nil {
		readDB.Close()
		db.Close()
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to set read_uncommitted pragma", err)
	}
	c.readDB = readDB

	if err := c.seedBloom(); err != nil {
		readDB.Close()
		db.Close()
		return nil, err
	}

	insertStmt, err := db.Prepare(`
		INSERT INTO runs (
			run_id, created_at, source, format,
			event_count, user_count, session_count, duration_ms,
			status, warnings, config, json_path, compressed_path
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to prepare insert statement", err)
	}
	c.insertStmt = insertStmt

	return c, nil
}

// WithStats attaches a run statistics tracker for bloom short-circuit counts.
func (c *SQLiteCatalog) WithStats(stats *observability.RunStats) *SQLiteCatalog {
	c.stats = stats
	return c
}

func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range schemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return perrors.NewCatalogError(perrors.CodeUnexpected, "failed to execute schema statement", err)
		}
	}
	return nil
}

// seedBloom loads existing run IDs so restarts keep the pre-screen honest.
func (c *SQLiteCatalog) seedBloom() error {
	rows, err := c.db.Query("SELECT run_id FROM runs")
	if err != nil {
		return perrors.NewCatalogError(perrors.CodeUnexpected, "failed to seed run filter", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return perrors.NewCatalogError(perrors.CodeUnexpected, "failed to scan run id", err)
		}
		c.known.Add([]byte(id))
	}
	return rows.Err()
}

// Register adds a completed run to the catalog.
func (c *SQLiteCatalog) Register(ctx context.Context, rec *RunRecord) error {
	if _, err := types.ParseULID(rec.RunID); err != nil {
		return perrors.New(perrors.ErrCategoryValidation, perrors.CodeInvalidRunID, "invalid run id: "+rec.RunID)
	}

	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return perrors.NewInternalError("marshaling warnings", err)
	}
	cfg := rec.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	status := rec.Status
	if status == "" {
		status = StatusCompleted
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err = c.insertStmt.ExecContext(ctx,
		rec.RunID, rec.CreatedAt.Unix(), rec.Source, rec.Format,
		rec.EventCount, rec.UserCount, rec.SessionCount, rec.DurationMS,
		status, string(warnings), string(cfg), rec.JSONPath, rec.CompressedPath,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return perrors.NewCatalogError(perrors.CodeWriteConflict, "run already registered: "+rec.RunID, err)
		}
		return perrors.NewCatalogError(perrors.CodeUnexpected, "failed to insert run", err)
	}

	c.known.Add([]byte(rec.RunID))
	c.log.Debug("run registered",
		zap.String("run_id", rec.RunID),
		zap.Int64("events", rec.EventCount),
		zap.Int64("sessions", rec.SessionCount))
	return nil
}

// Get retrieves a single run by ID.
func (c *SQLiteCatalog) Get(ctx context.Context, runID string) (*RunRecord, error) {
	if _, err := types.ParseULID(runID); err != nil {
		return nil, perrors.New(perrors.ErrCategoryValidation, perrors.CodeInvalidRunID, "invalid run id: "+runID)
	}

	if !c.known.Contains([]byte(runID)) {
		if c.stats != nil {
			c.stats.AddCounter(observability.CounterBloomNegatives, 1)
		}
		return nil, c.notFound(runID)
	}

	row := c.readDB.QueryRowContext(ctx, selectRuns+" WHERE run_id = ?", runID)
	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, c.notFound(runID)
		}
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to read run", err)
	}
	return rec, nil
}

// List returns the most recent runs, newest first. Run IDs are ULIDs, so
// ordering by ID orders by creation time with millisecond precision.
func (c *SQLiteCatalog) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := c.readDB.QueryContext(ctx, selectRuns+" ORDER BY run_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to list runs", err)
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to scan run", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "error iterating runs", err)
	}
	return records, nil
}

// Latest returns the most recent run.
func (c *SQLiteCatalog) Latest(ctx context.Context) (*RunRecord, error) {
	row := c.readDB.QueryRowContext(ctx, selectRuns+" ORDER BY run_id DESC LIMIT 1")
	rec, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, perrors.NewCatalogError(perrors.CodeRunNotFound, "no runs cataloged", nil)
		}
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to read latest run", err)
	}
	return rec, nil
}

// Count returns the number of cataloged runs.
func (c *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&n); err != nil {
		return 0, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to count runs", err)
	}
	return n, nil
}

// CountExpired returns the number of runs older than the TTL. The retention
// daemon uses it to size the sweep before committing to a delete.
func (c *SQLiteCatalog) CountExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	var n int64
	if err := c.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs WHERE created_at < ?", cutoff).Scan(&n); err != nil {
		return 0, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to count expired runs", err)
	}
	return n, nil
}

// DeleteExpired removes runs older than the TTL and returns their records.
func (c *SQLiteCatalog) DeleteExpired(ctx context.Context, ttl time.Duration) ([]*RunRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-ttl).Unix()

	rows, err := c.db.QueryContext(ctx, selectRuns+" WHERE created_at < ?", cutoff)
	if err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to query expired runs", err)
	}
	defer rows.Close()

	var expired []*RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to scan expired run", err)
		}
		expired = append(expired, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "error iterating expired runs", err)
	}

	for _, rec := range expired {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM runs WHERE run_id = ?", rec.RunID); err != nil {
			return nil, perrors.NewCatalogError(perrors.CodeUnexpected, "failed to delete run "+rec.RunID, err)
		}
	}
	return expired, nil
}

// Close closes the catalog database connections.
func (c *SQLiteCatalog) Close() error {
	if c.insertStmt != nil {
		c.insertStmt.Close()
	}
	if err := c.readDB.Close(); err != nil {
		c.db.Close()
		return err
	}
	return c.db.Close()
}

func (c *SQLiteCatalog) notFound(runID string) error {
	return perrors.NewCatalogError(perrors.CodeRunNotFound, "run not found: "+runID, nil)
}

const selectRuns = `
	SELECT run_id, created_at, source, format,
		event_count, user_count, session_count, duration_ms,
		status, warnings, config, json_path, compressed_path
	FROM runs`

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var rec RunRecord
	var createdAt int64
	var warnings, cfg string

	err := row.Scan(
		&rec.RunID, &createdAt, &rec.Source, &rec.Format,
		&rec.EventCount, &rec.UserCount, &rec.SessionCount, &rec.DurationMS,
		&rec.Status, &warnings, &cfg, &rec.JSONPath, &rec.CompressedPath,
	)
	if err != nil {
		return nil, err
	}

	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	if warnings != "" && warnings != "null" {
		if err := json.Unmarshal([]byte(warnings), &rec.Warnings); err != nil {
			return nil, err
		}
	}
	if cfg != "" {
		rec.Config = json.RawMessage(cfg)
	}
	return &rec, nil
}
