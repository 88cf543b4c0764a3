// Package benchmark provides performance benchmarks for PathSight
package benchmark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pathsight/pathsight/internal/bloom"
	"github.com/pathsight/pathsight/internal/catalog"
	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/ingest"
	"github.com/pathsight/pathsight/internal/profiler"
	"github.com/pathsight/pathsight/internal/report"
	"github.com/pathsight/pathsight/internal/session"
	"github.com/pathsight/pathsight/pkg/types"
)

// BenchmarkEventNormalization measures inline batch normalization throughput
func BenchmarkEventNormalization(b *testing.B) {
	cfg := config.DefaultConfig()
	loader := ingest.NewLoader(cfg.Input, cfg.Analysis.SystemEventNames)

	// Generate test objects
	objects := generateTestObjects(1000)

	b.ResetTimer()
	b.ReportAllocs()

	totalEvents := 0
	for i := 0; i < b.N; i++ {
		res, err := loader.LoadObjects(objects)
		if err != nil {
			b.Fatal(err)
		}
		totalEvents += len(res.Events)
	}

	b.ReportMetric(float64(totalEvents)/b.Elapsed().Seconds(), "events/sec")
}

// BenchmarkTimestampParsing measures timestamp normalization performance
func BenchmarkTimestampParsing(b *testing.B) {
	stamps := []string{
		"2026-02-06T14:30:00Z",
		"2026-02-06 14:30:00.123456789 +0000",
		"2026-02-06T14:30:00.5",
		"2026-02-06",
		"1770388200",
		"1770388200123",
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		stamp := stamps[i%len(stamps)]
		_, err := ingest.ParseTimestamp(stamp)
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSessionReconstruction measures boundary-based session assignment
func BenchmarkSessionReconstruction(b *testing.B) {
	cfg := config.DefaultConfig()
	rec := session.NewReconstructor(cfg.Analysis)

	// 100 users x 50 events, markers opening each user's stream
	events := generateTestEvents(100, 50)

	b.ResetTimer()
	b.ReportAllocs()

	totalEvents := 0
	for i := 0; i < b.N; i++ {
		sessions := rec.Reconstruct(events)
		if len(sessions) == 0 {
			b.Fatal("no sessions reconstructed")
		}
		totalEvents += len(events)
	}

	b.ReportMetric(float64(totalEvents)/b.Elapsed().Seconds(), "events/sec")
}

// BenchmarkBloomFilterLookup measures bloom filter lookup performance
func BenchmarkBloomFilterLookup(b *testing.B) {
	// Create a bloom filter with 10,000 run IDs
	filter := bloom.New(100000, 7)
	gen := types.NewULIDGenerator()

	var probe []byte
	for i := 0; i < 10000; i++ {
		id, err := gen.Generate()
		if err != nil {
			b.Fatal(err)
		}
		key := []byte(id.String())
		filter.Add(key)
		if i == 5000 {
			probe = key
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		filter.Contains(probe)
	}
}

// BenchmarkBloomFilterFalsePositiveRate measures actual FPR at the catalog's
// target of 1% or less
func BenchmarkBloomFilterFalsePositiveRate(b *testing.B) {
	// Create filter with 10,000 items targeting 1% FPR
	numItems := 10000
	targetFPR := 0.01
	numBits, numHashes := bloom.OptimalParameters(numItems, targetFPR)
	filter := bloom.New(numBits, numHashes)

	// Add items
	for i := 0; i < numItems; i++ {
		filter.Add([]byte(fmt.Sprintf("run_%d", i)))
	}

	// Test false positives with non-member items
	falsePositives := 0
	testCount := 100000
	for i := 0; i < testCount; i++ {
		key := []byte(fmt.Sprintf("nonmember_%d", i))
		if filter.Contains(key) {
			falsePositives++
		}
	}

	actualFPR := float64(falsePositives) / float64(testCount)
	b.ReportMetric(actualFPR*100, "FPR%")

	if actualFPR > 0.011 { // Allow 10% margin
		b.Errorf("False positive rate %.4f exceeds target 1.1%%", actualFPR)
	}
}

// BenchmarkCatalogLookup measures run lookup against a populated catalog
func BenchmarkCatalogLookup(b *testing.B) {
	tmpDir, err := os.MkdirTemp("", "pathsight-bench-catalog-*")
	if err != nil {
		b.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	cat, err := catalog.New(filepath.Join(tmpDir, "catalog.db"))
	if err != nil {
		b.Fatal(err)
	}
	defer cat.Close()

	ctx := context.Background()
	gen := types.NewULIDGenerator()

	// Register 1000 runs
	ids := make([]string, 1000)
	for i := 0; i < 1000; i++ {
		id, err := gen.Generate()
		if err != nil {
			b.Fatal(err)
		}
		ids[i] = id.String()

		rec := &catalog.RunRecord{
			RunID:          ids[i],
			CreatedAt:      time.Now().Add(-time.Duration(i) * time.Minute),
			Source:         fmt.Sprintf("exports/batch_%02d.csv", i%10),
			Format:         "csv",
			EventCount:     int64(1000 + i),
			UserCount:      int64(100 + i%50),
			SessionCount:   int64(300 + i%100),
			DurationMS:     int64(40 + i%200),
			JSONPath:       report.JSONPath(ids[i]),
			CompressedPath: report.CompressedPath(ids[i]),
		}
		if err := cat.Register(ctx, rec); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := cat.Get(ctx, ids[i%len(ids)])
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkReportSerialization measures report JSON round trips
func BenchmarkReportSerialization(b *testing.B) {
	cfg := config.DefaultConfig()
	events := generateTestEvents(50, 40)

	rep, err := profiler.NewEngine(cfg.Analysis).Run(context.Background(), events, "bench")
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		data, err := report.Encode(rep)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := report.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkULIDGeneration measures run ID generation throughput
func BenchmarkULIDGeneration(b *testing.B) {
	gen := types.NewULIDGenerator()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, err := gen.Generate()
		if err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkStorageRoundTrip measures artifact-sized object writes and reads
func BenchmarkStorageRoundTrip(b *testing.B) {
	st, cleanup := getBenchmarkStorage(b, "roundtrip")
	defer cleanup()

	// 1MB payload, roughly a mid-sized report artifact
	data := make([]byte, 1024*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}

	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	b.SetBytes(int64(len(data)))

	for i := 0; i < b.N; i++ {
		objectPath := fmt.Sprintf("test_%d.dat", i)
		if err := st.Put(ctx, objectPath, data); err != nil {
			b.Fatal(err)
		}
		if _, err := st.Get(ctx, objectPath); err != nil {
			b.Fatal(err)
		}
	}
}

var testEventNames = []string{
	"Home View", "Product View", "Search", "Add To Cart", "Checkout Started",
}

// generateTestObjects creates decoded JSON event objects for ingest benchmarks
func generateTestObjects(count int) []map[string]interface{} {
	objects := make([]map[string]interface{}, count)
	base := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)

	for i := 0; i < count; i++ {
		name := testEventNames[i%len(testEventNames)]
		if i%12 == 0 {
			name = "Session Started"
		}
		objects[i] = map[string]interface{}{
			"user_id":    fmt.Sprintf("user_%03d", i%100),
			"timestamp":  base.Add(time.Duration(i) * time.Second).Format(time.RFC3339),
			"event_name": name,
		}
	}
	return objects
}

// generateTestEvents creates a normalized stream of users*perUser events,
// sorted by user then time, with a marker opening each user's stream.
func generateTestEvents(users, perUser int) []types.Event {
	events := make([]types.Event, 0, users*perUser)
	base := time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC)
	seq := int64(0)

	for u := 0; u < users; u++ {
		userID := fmt.Sprintf("user_%04d", u)
		for i := 0; i < perUser; i++ {
			name := testEventNames[(u+i)%len(testEventNames)]
			category := types.CategoryApplication
			if i%15 == 0 {
				name = "Session Started"
				category = types.CategorySystem
			}
			events = append(events, types.Event{
				Seq:       seq,
				UserID:    userID,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
				Name:      name,
				Category:  category,
				SessionID: types.UnassignedSession,
			})
			seq++
		}
	}
	return events
}
