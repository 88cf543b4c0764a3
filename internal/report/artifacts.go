// Package report renders profiling reports: JSON artifacts persisted to
// object storage and a plain-text summary for the console.
package report

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/golang/snappy"
	"go.uber.org/zap"

	perrors "github.com/pathsight/pathsight/internal/errors"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/internal/storage"
	"github.com/pathsight/pathsight/pkg/types"
)

// Artifact object names under the per-run prefix.
const (
	jsonArtifact   = "report.json"
	snappyArtifact = "report.json.sz"
)

// JSONPath returns the object path of the plain JSON artifact for a run.
func JSONPath(runID string) string { return runID + "/" + jsonArtifact }

// CompressedPath returns the object path of the snappy artifact for a run.
func CompressedPath(runID string) string { return runID + "/" + snappyArtifact }

// ArtifactPaths returns every object a run writes, for the catalog sweep.
func ArtifactPaths(runID string) []string {
	return []string{CompressedPath(runID), JSONPath(runID)}
}

// Artifacts describes what a write produced.
type Artifacts struct {
	JSONPath       string `json:"json_path"`
	CompressedPath string `json:"compressed_path"`
	JSONSize       int64  `json:"json_size"`
	CompressedSize int64  `json:"compressed_size"`
}

// Store persists reports to object storage and reads them back. Both the
// plain and the snappy-compressed JSON are written; reads prefer the
// compressed artifact.
type Store struct {
	storage storage.ObjectStorage
	log     *zap.Logger
}

// NewStore creates a report store over the given object storage.
func NewStore(st storage.ObjectStorage) *Store {
	return &Store{storage: st, log: logging.Named("report")}
}

// Write renders the report and uploads both artifacts.
func (s *Store) Write(ctx context.Context, rep *types.Report) (*Artifacts, error) {
	data, err := Encode(rep)
	if err != nil {
		return nil, err
	}
	compressed := snappy.Encode(nil, data)

	if err := s.storage.Put(ctx, CompressedPath(rep.RunID), compressed); err != nil {
		return nil, perrors.NewStorageError(perrors.CodeUploadFailed, "uploading compressed report", err)
	}
	if err := s.storage.Put(ctx, JSONPath(rep.RunID), data); err != nil {
		return nil, perrors.NewStorageError(perrors.CodeUploadFailed, "uploading report", err)
	}

	art := &Artifacts{
		JSONPath:       JSONPath(rep.RunID),
		CompressedPath: CompressedPath(rep.RunID),
		JSONSize:       int64(len(data)),
		CompressedSize: int64(len(compressed)),
	}
	s.log.Debug("report persisted",
		zap.String("run_id", rep.RunID),
		zap.Int64("json_bytes", art.JSONSize),
		zap.Int64("compressed_bytes", art.CompressedSize))
	return art, nil
}

// ReadRaw returns the plain JSON bytes of a stored report. The compressed
// artifact is preferred; the plain one is the fallback for stores written
// before compression or with it disabled.
func (s *Store) ReadRaw(ctx context.Context, runID string) ([]byte, error) {
	compressed, err := s.storage.Get(ctx, CompressedPath(runID))
	if err == nil {
		data, decErr := snappy.Decode(nil, compressed)
		if decErr != nil {
			return nil, perrors.NewStorageError(perrors.CodeDownloadFailed, "decoding compressed report", decErr)
		}
		return data, nil
	}
	if !errors.Is(err, storage.ErrObjectNotFound) {
		return nil, perrors.NewStorageError(perrors.CodeDownloadFailed, "downloading compressed report", err)
	}

	data, err := s.storage.Get(ctx, JSONPath(runID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, perrors.New(perrors.ErrCategoryStorage, perrors.CodeObjectNotFound, "report not found: "+runID)
		}
		return nil, perrors.NewStorageError(perrors.CodeDownloadFailed, "downloading report", err)
	}
	return data, nil
}

// Read returns a stored report.
func (s *Store) Read(ctx context.Context, runID string) (*types.Report, error) {
	data, err := s.ReadRaw(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// Encode renders a report as indented JSON.
func Encode(rep *types.Report) ([]byte, error) {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return nil, perrors.NewInternalError("marshaling report", err)
	}
	return data, nil
}

// Decode parses a rendered report.
func Decode(data []byte) (*types.Report, error) {
	var rep types.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, perrors.NewInternalError("unmarshaling report", err)
	}
	return &rep, nil
}
