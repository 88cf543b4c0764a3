// Package session reconstructs user sessions from normalized event streams.
//
// The default boundary policy derives session membership from the lifecycle
// markers embedded in the stream itself: a user's first event opens session 0
// regardless of its category, and every later marker event opens the next
// session, carrying the marker as that session's first member. Events seen
// before a user's first marker therefore still belong to a real session
// rather than being discarded.
//
// The time_gap policy is a fallback for streams without reliable markers. It
// splits on inactivity gaps and ignores categories entirely.
package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/pathsight/pathsight/internal/config"
	"github.com/pathsight/pathsight/internal/logging"
	"github.com/pathsight/pathsight/pkg/types"
)

// Reconstructor assigns session identity to events.
type Reconstructor struct {
	policy string
	gap    time.Duration
	log    *zap.Logger
}

// NewReconstructor creates a reconstructor for the configured policy.
func NewReconstructor(cfg config.AnalysisConfig) *Reconstructor {
	r := &Reconstructor{
		policy: cfg.SessionPolicy,
		gap:    time.Duration(cfg.SessionGapMinutes) * time.Minute,
		log:    logging.Named("session"),
	}
	if r.policy == config.PolicyTimeGap {
		r.log.Warn("time_gap session policy active, lifecycle markers will not open sessions",
			zap.Duration("gap", r.gap))
	}
	return r
}

// Reconstruct assigns a session id to every event and returns the resulting
// sessions ordered by user, then session id. The input must be sorted by
// (user, timestamp) with stable tie order; session ids are contiguous from 0
// within each user.
func (r *Reconstructor) Reconstruct(events []types.Event) []types.Session {
	var sessions []types.Session
	for start := 0; start < len(events); {
		end := start
		for end < len(events) && events[end].UserID == events[start].UserID {
			end++
		}
		user := events[start:end]
		switch r.policy {
		case config.PolicyTimeGap:
			r.assignTimeGap(user)
		default:
			r.assignBoundary(user)
		}
		sessions = appendSessions(sessions, user)
		start = end
	}
	return sessions
}

// assignBoundary implements the marker-opens-session policy for one user's
// ordered events. The first event always opens session 0; each later marker
// increments the counter before taking the new id, so the marker leads the
// session it opens.
func (r *Reconstructor) assignBoundary(events []types.Event) {
	var counter int64
	for i := range events {
		if i > 0 && events[i].IsSystem() {
			counter++
		}
		events[i].SessionID = counter
	}
}

// assignTimeGap splits one user's ordered events on inactivity gaps.
func (r *Reconstructor) assignTimeGap(events []types.Event) {
	var counter int64
	for i := range events {
		if i > 0 && events[i].Timestamp.Sub(events[i-1].Timestamp) > r.gap {
			counter++
		}
		events[i].SessionID = counter
	}
}

// appendSessions groups one user's annotated events into Session values.
// Ids are non-decreasing, so each session is a contiguous run.
func appendSessions(out []types.Session, events []types.Event) []types.Session {
	for start := 0; start < len(events); {
		end := start
		for end < len(events) && events[end].SessionID == events[start].SessionID {
			end++
		}
		out = append(out, types.Session{
			UserID: events[start].UserID,
			ID:     events[start].SessionID,
			Events: events[start:end],
		})
		start = end
	}
	return out
}
