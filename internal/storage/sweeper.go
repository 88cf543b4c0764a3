package storage

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Sweeper deletes artifact objects in parallel. The catalog prune uses it to
// remove expired run artifacts without serializing on storage latency.
type Sweeper struct {
	storage     ObjectStorage
	concurrency int
}

// SweepResult contains the outcome of a sweep.
type SweepResult struct {
	Deleted int
	Errors  map[string]error
}

// NewSweeper creates a sweeper with the given parallelism.
func NewSweeper(storage ObjectStorage, concurrency int) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Sweeper{storage: storage, concurrency: concurrency}
}

// Sweep deletes the given objects at the sweeper's default concurrency.
func (s *Sweeper) Sweep(ctx context.Context, objectPaths []string) *SweepResult {
	return s.SweepN(ctx, objectPaths, s.concurrency)
}

// SweepN deletes the given objects, at most concurrency at a time. Individual
// failures are collected per path rather than aborting the sweep.
func (s *Sweeper) SweepN(ctx context.Context, objectPaths []string, concurrency int) *SweepResult {
	if concurrency < 1 {
		concurrency = s.concurrency
	}

	result := &SweepResult{Errors: make(map[string]error)}
	if len(objectPaths) == 0 {
		return result
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range objectPaths {
		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			result.Errors[p] = fmt.Errorf("semaphore acquire failed: %w", err)
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(path string) {
			defer sem.Release(1)
			defer wg.Done()

			if err := s.storage.Delete(ctx, path); err != nil {
				mu.Lock()
				result.Errors[path] = err
				mu.Unlock()
				return
			}

			mu.Lock()
			result.Deleted++
			mu.Unlock()
		}(p)
	}

	wg.Wait()
	return result
}
