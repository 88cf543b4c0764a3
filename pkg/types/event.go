// Package types provides core data types for PathSight.
package types

import "time"

// Category classifies an event as part of the application's own
// session/lifecycle infrastructure or as observed user behavior.
type Category string

const (
	// CategorySystem marks lifecycle events (session start, journey start/end,
	// install, login, push click). System events are the ground-truth session
	// boundaries.
	CategorySystem Category = "system"

	// CategoryApplication marks every event that is not a system event.
	CategoryApplication Category = "application"
)

// UnassignedSession is the SessionID value of an event that has not yet been
// through session reconstruction.
const UnassignedSession int64 = -1

// Event is one observed action in the behavioral log.
type Event struct {
	// Seq is the position of the event in the original input, assigned at
	// ingest. It breaks timestamp ties so session assignment stays
	// deterministic.
	Seq int64 `json:"-"`

	// UserID is an opaque, stable per-user identifier.
	UserID string `json:"user_id"`

	// Timestamp is the absolute time of the event, normalized to UTC.
	Timestamp time.Time `json:"timestamp"`

	// Name is the event label. The vocabulary is open-ended; any string is a
	// first-class event type.
	Name string `json:"event_name"`

	// Category is system or application, assigned by name lookup at ingest.
	Category Category `json:"category"`

	// SessionID is the per-user session counter value, assigned by the
	// session reconstructor. UnassignedSession before reconstruction.
	SessionID int64 `json:"session_id"`
}

// IsSystem reports whether the event is a session boundary marker.
func (e Event) IsSystem() bool {
	return e.Category == CategorySystem
}

// Session is a maximal contiguous run of one user's events bounded by system
// event markers. Sessions are derived by grouping the reconstructed stream on
// (UserID, SessionID); they are never stored independently.
type Session struct {
	UserID string  `json:"user_id"`
	ID     int64   `json:"session_id"`
	Events []Event `json:"events"`
}

// Len returns the number of events in the session.
func (s Session) Len() int {
	return len(s.Events)
}

// Duration returns the span between the first and last event. A single-event
// session has zero duration.
func (s Session) Duration() time.Duration {
	if len(s.Events) < 2 {
		return 0
	}
	return s.Events[len(s.Events)-1].Timestamp.Sub(s.Events[0].Timestamp)
}

// First returns the first event name, or "" for an empty session.
func (s Session) First() string {
	if len(s.Events) == 0 {
		return ""
	}
	return s.Events[0].Name
}

// Last returns the last event name, or "" for an empty session.
func (s Session) Last() string {
	if len(s.Events) == 0 {
		return ""
	}
	return s.Events[len(s.Events)-1].Name
}

// Names returns the ordered event-name sequence of the session.
func (s Session) Names() []string {
	names := make([]string, len(s.Events))
	for i, e := range s.Events {
		names[i] = e.Name
	}
	return names
}
