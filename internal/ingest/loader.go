// Package ingest loads raw event exports into normalized event streams.
//
// Supported formats are CSV with a header row and JSON Lines. Column and key
// names are resolved through a small alias table so exports from different
// pipelines load without reshaping. Every record is normalized to UTC, tagged
// with its lifecycle category, and optionally deduplicated before analysis.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/config"
	perrors "github.com/pathsight/pathsight/internal/errors"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/pkg/types"
)

// Loader reads an event export into a normalized, sorted event stream.
type Loader struct {
	in     config.InputConfig
	system map[string]struct{}
	log    *zap.Logger
}

// NewLoader creates a loader. systemEvents are the configured lifecycle
// marker names; matching is exact after whitespace trimming.
func NewLoader(in config.InputConfig, systemEvents []string) *Loader {
	sys := make(map[string]struct{}, len(systemEvents))
	for _, n := range systemEvents {
		sys[strings.TrimSpace(n)] = struct{}{}
	}
	return &Loader{
		in:     in,
		system: sys,
		log:    logging.Named("ingest"),
	}
}

// Result carries the normalized stream and ingest counters.
type Result struct {
	// Events is sorted by (user, timestamp) with input order breaking ties.
	Events []types.Event

	// Format is the resolved input format: "csv", "jsonl" or "inline".
	Format string

	// Malformed counts records that could not be parsed.
	Malformed int64

	// Duplicates counts suppressed exact-duplicate records.
	Duplicates int64
}

// Load reads, normalizes and sorts the event stream at path.
// Returns INGEST:EMPTY_INPUT when no valid events remain.
func (l *Loader) Load(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCategoryIngest, perrors.CodeUnreadableSource,
			"failed to open input "+path, err)
	}
	defer f.Close()

	format := l.in.Format
	if format == "" || format == "auto" {
		format = detectFormat(path)
	}

	var res *Result
	switch format {
	case "csv":
		res, err = l.loadCSV(ctx, f)
	case "jsonl":
		res, err = l.loadJSONL(ctx, f)
	default:
		return nil, perrors.New(perrors.ErrCategoryIngest, perrors.CodeUnknownFormat,
			"unsupported input format: "+format)
	}
	if err != nil {
		return nil, err
	}
	res.Format = format

	if len(res.Events) == 0 {
		return nil, perrors.NewEmptyInputError("no valid events in " + path)
	}

	sortEvents(res.Events)

	l.log.Info("loaded event stream",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("events", len(res.Events)),
		zap.Int64("malformed", res.Malformed),
		zap.Int64("duplicates", res.Duplicates))

	return res, nil
}

// LoadObjects normalizes a batch of already-decoded JSON event objects,
// applying the same column aliasing, timestamp parsing and dedup rules as
// file ingest. Returns INGEST:EMPTY_INPUT when no valid events remain.
func (l *Loader) LoadObjects(objects []map[string]interface{}) (*Result, error) {
	res := &Result{Format: "inline"}
	dedup := newDeduper(l.in.DropExactDuplicates)
	for i, obj := range objects {
		ev, err := l.eventFromObject(obj)
		if err != nil {
			if aerr := l.recordMalformed(res, i+1, err); aerr != nil {
				return nil, aerr
			}
			continue
		}
		l.appendEvent(res, dedup, ev)
	}
	if len(res.Events) == 0 {
		return nil, perrors.NewEmptyInputError("no valid events in batch")
	}
	sortEvents(res.Events)
	return res, nil
}

// detectFormat infers the input format from the file extension.
func detectFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return "jsonl"
	default:
		return "csv"
	}
}

func (l *Loader) loadCSV(ctx context.Context, r io.Reader) (*Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return &Result{}, nil
	}
	if err != nil {
		return nil, perrors.Wrap(perrors.ErrCategoryIngest, perrors.CodeUnreadableSource,
			"failed to read CSV header", err)
	}
	cols, err := DetectColumns(header, l.in)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	dedup := newDeduper(l.in.DropExactDuplicates)
	row := 1
	for {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			if aerr := l.recordMalformed(res, row, err); aerr != nil {
				return nil, aerr
			}
			continue
		}
		ev, err := l.eventFromRecord(rec, cols)
		if err != nil {
			if aerr := l.recordMalformed(res, row, err); aerr != nil {
				return nil, aerr
			}
			continue
		}
		l.appendEvent(res, dedup, ev)
	}
	return res, nil
}

func (l *Loader) loadJSONL(ctx context.Context, r io.Reader) (*Result, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	res := &Result{}
	dedup := newDeduper(l.in.DropExactDuplicates)
	line := 0
	for sc.Scan() {
		line++
		if line%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(raw, &obj); err != nil {
			if aerr := l.recordMalformed(res, line, err); aerr != nil {
				return nil, aerr
			}
			continue
		}
		ev, err := l.eventFromObject(obj)
		if err != nil {
			if aerr := l.recordMalformed(res, line, err); aerr != nil {
				return nil, aerr
			}
			continue
		}
		l.appendEvent(res, dedup, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, perrors.Wrap(perrors.ErrCategoryIngest, perrors.CodeUnreadableSource,
			"failed to read input", err)
	}
	return res, nil
}

func (l *Loader) appendEvent(res *Result, dedup *deduper, ev types.Event) {
	if dedup.IsDuplicate(&ev) {
		res.Duplicates++
		return
	}
	ev.Seq = int64(len(res.Events))
	res.Events = append(res.Events, ev)
}

// recordMalformed counts a bad record and either logs it (skip policy) or
// returns an INGEST:MALFORMED_RECORD error (abort policy).
func (l *Loader) recordMalformed(res *Result, row int, cause error) error {
	res.Malformed++
	if l.in.OnMalformed == "abort" {
		return perrors.NewMalformedRecordError(fmt.Sprintf("record %d", row), cause)
	}
	l.log.Debug("skipping malformed record", zap.Int("record", row), zap.Error(cause))
	return nil
}

func (l *Loader) eventFromRecord(rec []string, cols ColumnMap) (types.Event, error) {
	if len(rec) <= cols.User || len(rec) <= cols.Time || len(rec) <= cols.Event {
		return types.Event{}, fmt.Errorf("too few fields: %d", len(rec))
	}
	user := strings.TrimSpace(rec[cols.User])
	name := strings.TrimSpace(rec[cols.Event])
	tsRaw := strings.TrimSpace(rec[cols.Time])
	if user == "" || name == "" || tsRaw == "" {
		return types.Event{}, fmt.Errorf("missing required field")
	}
	ts, err := ParseTimestamp(tsRaw)
	if err != nil {
		return types.Event{}, err
	}
	return l.newEvent(user, ts, name), nil
}

func (l *Loader) eventFromObject(obj map[string]interface{}) (types.Event, error) {
	user := asString(jsonField(obj, l.in.UserColumn, userAliases))
	name := asString(jsonField(obj, l.in.EventColumn, eventAliases))
	tsVal := jsonField(obj, l.in.TimeColumn, timeAliases)
	if user == "" || name == "" || tsVal == nil {
		return types.Event{}, fmt.Errorf("missing required field")
	}

	var ts time.Time
	switch t := tsVal.(type) {
	case string:
		parsed, err := ParseTimestamp(strings.TrimSpace(t))
		if err != nil {
			return types.Event{}, err
		}
		ts = parsed
	case float64:
		ts = timeFromEpoch(t)
	default:
		return types.Event{}, fmt.Errorf("unsupported timestamp type %T", tsVal)
	}

	return l.newEvent(user, ts, name), nil
}

func (l *Loader) newEvent(user string, ts time.Time, name string) types.Event {
	return types.Event{
		UserID:    user,
		Timestamp: ts,
		Name:      name,
		Category:  l.categorize(name),
		SessionID: types.UnassignedSession,
	}
}

// categorize tags an event as a lifecycle marker or an application action.
func (l *Loader) categorize(name string) types.Category {
	if _, ok := l.system[name]; ok {
		return types.CategorySystem
	}
	return types.CategoryApplication
}

// jsonField resolves a value by configured key or alias list.
func jsonField(obj map[string]interface{}, override string, aliases []string) interface{} {
	if override != "" {
		return obj[override]
	}
	for _, a := range aliases {
		if v, ok := obj[a]; ok {
			return v
		}
	}
	return nil
}

// asString renders a JSON string or number value as a string identifier.
func asString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	}
	return ""
}

// sortEvents orders the stream by user, then timestamp, then input order.
func sortEvents(events []types.Event) {
	sort.Slice(events, func(i, j int) bool {
		a, b := &events[i], &events[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Seq < b.Seq
	})
}
