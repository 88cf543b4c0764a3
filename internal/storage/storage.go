// Package storage provides object storage for report artifacts.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrUploadFailed   = errors.New("upload failed")
	ErrDownloadFailed = errors.New("download failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStorage abstracts the artifact store. Implementations include S3 and
// the local filesystem. Report artifacts are small, so the interface moves
// whole objects as byte slices.
type ObjectStorage interface {
	// Put writes an object, replacing any existing content at objectPath.
	Put(ctx context.Context, objectPath string, data []byte) error

	// Get reads an object. Returns ErrObjectNotFound if it does not exist.
	Get(ctx context.Context, objectPath string) ([]byte, error)

	// Delete removes an object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error

	// Exists reports whether an object exists.
	Exists(ctx context.Context, objectPath string) (bool, error)

	// List returns all object paths under the given prefix. Used by the
	// catalog sweep to find orphaned artifacts.
	List(ctx context.Context, prefix string) ([]string, error)
}
