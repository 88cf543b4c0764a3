package ingest

import (
	"strings"

	"github.com/pathsight/pathsight/internal/config"
	perrors "github.com/pathsight/pathsight/internal/errors"
)

// ColumnMap holds the resolved positions of the three required roles in a
// CSV header.
type ColumnMap struct {
	User  int
	Time  int
	Event int
}

// Known header spellings per role, in priority order. Exports disagree on
// naming; user_uuid and event_time are common in mobile analytics dumps.
var (
	userAliases  = []string{"user_id", "user_uuid", "user", "uid", "customer_id"}
	timeAliases  = []string{"timestamp", "event_time", "time", "ts", "created_at"}
	eventAliases = []string{"event_name", "event", "name", "action"}
)

// DetectColumns resolves the user, time and event columns from a CSV header.
// Explicit config overrides win; otherwise the first alias match is used.
func DetectColumns(header []string, in config.InputConfig) (ColumnMap, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}

	cm := ColumnMap{}
	var err error
	if cm.User, err = resolveColumn(idx, in.UserColumn, userAliases, "user"); err != nil {
		return cm, err
	}
	if cm.Time, err = resolveColumn(idx, in.TimeColumn, timeAliases, "timestamp"); err != nil {
		return cm, err
	}
	if cm.Event, err = resolveColumn(idx, in.EventColumn, eventAliases, "event name"); err != nil {
		return cm, err
	}
	return cm, nil
}

func resolveColumn(idx map[string]int, override string, aliases []string, role string) (int, error) {
	if override != "" {
		if i, ok := idx[strings.ToLower(override)]; ok {
			return i, nil
		}
		return -1, perrors.New(perrors.ErrCategoryIngest, perrors.CodeUnknownFormat,
			"configured "+role+" column "+override+" not found in header")
	}
	for _, a := range aliases {
		if i, ok := idx[a]; ok {
			return i, nil
		}
	}
	return -1, perrors.New(perrors.ErrCategoryIngest, perrors.CodeUnknownFormat,
		"no "+role+" column found in header")
}
