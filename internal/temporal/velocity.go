package temporal

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/pathsight/pathsight/pkg/types"
)

// userSeries pools per-user gap and velocity samples across all users.
type userSeries struct {
	gaps             []float64
	velocities       []float64
	singleEventUsers int64
}

type span struct {
	start, end int
}

// userSpans returns the contiguous per-user runs of a user-sorted stream.
func userSpans(events []types.Event) []span {
	var spans []span
	start := 0
	for i := 1; i <= len(events); i++ {
		if i == len(events) || events[i].UserID != events[start].UserID {
			spans = append(spans, span{start: start, end: i})
			start = i
		}
	}
	return spans
}

// perUserSeries computes inter-event gaps and sliding-window velocities,
// fanning out across users with bounded parallelism. events must be sorted by
// user then time, as ingest produces them. Users with fewer than two events
// are counted and skipped.
func (a *Analyzer) perUserSeries(ctx context.Context, events []types.Event) (*userSeries, error) {
	window := time.Duration(a.cfg.VelocityWindowMinutes) * time.Minute

	sem := semaphore.NewWeighted(int64(a.cfg.Workers))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	out := &userSeries{}

	for _, sp := range userSpans(events) {
		user := events[sp.start:sp.end]
		if len(user) < 2 {
			out.singleEventUsers++
			continue
		}

		if err := sem.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}
		wg.Add(1)
		go func(user []types.Event) {
			defer sem.Release(1)
			defer wg.Done()

			gaps := userGaps(user)
			velocities := userVelocities(user, window)

			mu.Lock()
			out.gaps = append(out.gaps, gaps...)
			out.velocities = append(out.velocities, velocities...)
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// userGaps returns consecutive-event deltas in seconds for one user's
// time-ordered events.
func userGaps(events []types.Event) []float64 {
	gaps := make([]float64, 0, len(events)-1)
	for i := 1; i < len(events); i++ {
		gaps = append(gaps, events[i].Timestamp.Sub(events[i-1].Timestamp).Seconds())
	}
	return gaps
}

// userVelocities returns the events-per-minute rate of the half-open window
// [t, t+window) anchored at each event. The end pointer never moves backward,
// so the scan is linear.
func userVelocities(events []types.Event, window time.Duration) []float64 {
	minutes := window.Minutes()
	velocities := make([]float64, 0, len(events))
	j := 0
	for i := range events {
		limit := events[i].Timestamp.Add(window)
		for j < len(events) && events[j].Timestamp.Before(limit) {
			j++
		}
		velocities = append(velocities, float64(j-i)/minutes)
	}
	return velocities
}
