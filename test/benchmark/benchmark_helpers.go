package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"github.com/pathsight/pathsight/internal/storage"
)

// PrefixedStorage wraps an ObjectStorage and prepends a prefix to all object paths.
type PrefixedStorage struct {
	inner  storage.ObjectStorage
	prefix string
}

func (s *PrefixedStorage) Put(ctx context.Context, objectPath string, data []byte) error {
	return s.inner.Put(ctx, s.prefix+"/"+objectPath, data)
}

func (s *PrefixedStorage) Get(ctx context.Context, objectPath string) ([]byte, error) {
	return s.inner.Get(ctx, s.prefix+"/"+objectPath)
}

func (s *PrefixedStorage) Delete(ctx context.Context, objectPath string) error {
	return s.inner.Delete(ctx, s.prefix+"/"+objectPath)
}

func (s *PrefixedStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	return s.inner.Exists(ctx, s.prefix+"/"+objectPath)
}

func (s *PrefixedStorage) List(ctx context.Context, prefix string) ([]string, error) {
	// Prepend the run prefix to the query and strip it from the results so
	// callers see the same keys they wrote.
	fullPrefix := s.prefix + "/" + prefix
	objects, err := s.inner.List(ctx, fullPrefix)
	if err != nil {
		return nil, err
	}

	stripped := make([]string, len(objects))
	for i, obj := range objects {
		if len(obj) > len(s.prefix)+1 {
			stripped[i] = obj[len(s.prefix)+1:]
		} else {
			stripped[i] = obj
		}
	}
	return stripped, nil
}

// getBenchmarkStorage returns an object store for benchmark artifacts.
// It respects PATHSIGHT_STORAGE_TYPE=s3 from .env or environment.
// For S3: objects land under a unique "bench/<benchName>/<timestamp>" prefix.
// For Local: objects go to a temp dir removed by the cleanup func.
func getBenchmarkStorage(b *testing.B, benchName string) (storage.ObjectStorage, func()) {
	// Try loading .env from project root (../../.env relative to test/benchmark)
	_ = godotenv.Load("../../.env")

	storageType := os.Getenv("PATHSIGHT_STORAGE_TYPE")

	if storageType == "s3" {
		// Map credentials
		if v := os.Getenv("PATHSIGHT_AWS_ACCESS_KEY_ID"); v != "" {
			os.Setenv("AWS_ACCESS_KEY_ID", v)
		}
		if v := os.Getenv("PATHSIGHT_AWS_SECRET_ACCESS_KEY"); v != "" {
			os.Setenv("AWS_SECRET_ACCESS_KEY", v)
		}

		bucket := os.Getenv("PATHSIGHT_S3_BUCKET")
		region := os.Getenv("PATHSIGHT_S3_REGION")
		endpoint := os.Getenv("PATHSIGHT_S3_ENDPOINT")

		if bucket == "" {
			b.Fatal("PATHSIGHT_S3_BUCKET is required for s3 benchmark")
		}

		cfg := storage.DefaultS3Config()
		cfg.Region = region
		cfg.Endpoint = endpoint

		st, err := storage.NewS3Storage(context.Background(), bucket, cfg)
		if err != nil {
			b.Fatalf("Failed to initialize S3 storage: %v", err)
		}

		// Unique prefix for this run. Cleanup is manual for S3 so a failed
		// run can be inspected.
		prefix := fmt.Sprintf("bench/%s/%d", benchName, time.Now().UnixNano())
		cleanup := func() {}

		b.Logf("Running benchmark against S3 Bucket: %s Prefix: %s", bucket, prefix)

		return &PrefixedStorage{inner: st, prefix: prefix}, cleanup
	}

	// Default to Local
	dir, err := os.MkdirTemp("", "pathsight-bench-"+benchName+"-*")
	if err != nil {
		b.Fatal(err)
	}

	st, err := storage.NewLocalStorage(filepath.Join(dir, "objects"))
	if err != nil {
		b.Fatal(err)
	}

	cleanup := func() {
		os.RemoveAll(dir)
	}

	return st, cleanup
}
