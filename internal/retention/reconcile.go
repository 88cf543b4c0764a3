package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/storage"
)

// ReconciliationReport contains the results of a catalog-storage reconciliation.
type ReconciliationReport struct {
	// DanglingRuns are catalog records whose artifacts do not exist in storage.
	DanglingRuns []DanglingRun
	// OrphanedObjects are storage objects with no corresponding catalog record.
	OrphanedObjects []string
	// TotalRuns is the number of cataloged runs checked.
	TotalRuns int
	// TotalObjects is the number of storage objects scanned.
	TotalObjects int
	// CheckedAt is when the reconciliation was performed.
	CheckedAt time.Time
}

// DanglingRun identifies a missing artifact of a cataloged run.
type DanglingRun struct {
	RunID      string
	ObjectPath string
}

// HasIssues returns true if the report contains any dangling runs or orphaned objects.
func (r *ReconciliationReport) HasIssues() bool {
	return len(r.DanglingRuns) > 0 || len(r.OrphanedObjects) > 0
}

// Reconcile checks consistency between the run catalog and object storage.
// It detects dangling runs (catalog rows whose artifacts are gone, so their
// reports cannot be served) and orphaned objects (artifacts no cataloged run
// points at, typically left behind by a sweep that failed partway). It only
// reports; repairing the drift is left to the caller.
func Reconcile(ctx context.Context, cat catalog.Catalog, store storage.ObjectStorage) (*ReconciliationReport, error) {
	rep := &ReconciliationReport{
		CheckedAt: time.Now(),
	}

	count, err := cat.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("retention: failed to count runs: %w", err)
	}

	var runs []*catalog.RunRecord
	if count > 0 {
		runs, err = cat.List(ctx, int(count))
		if err != nil {
			return nil, fmt.Errorf("retention: failed to list runs: %w", err)
		}
	}
	rep.TotalRuns = len(runs)

	// Build the set of object paths the catalog accounts for.
	known := make(map[string]string) // object path -> run id
	for _, rec := range runs {
		for _, p := range recordPaths(rec) {
			known[p] = rec.RunID
		}
	}

	// Check each cataloged artifact for existence (dangling detection).
	for _, rec := range runs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range recordPaths(rec) {
			exists, err := store.Exists(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("retention: failed to check artifact %s: %w", p, err)
			}
			if !exists {
				rep.DanglingRuns = append(rep.DanglingRuns, DanglingRun{
					RunID:      rec.RunID,
					ObjectPath: p,
				})
			}
		}
	}

	// Scan storage for objects the catalog does not track (orphan detection).
	objects, err := store.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("retention: failed to list storage objects: %w", err)
	}
	rep.TotalObjects = len(objects)

	for _, objPath := range objects {
		if _, tracked := known[objPath]; !tracked {
			rep.OrphanedObjects = append(rep.OrphanedObjects, objPath)
		}
	}

	return rep, nil
}
