package types

import "time"

// Report is the structured output of one profiling run, the shape consumed by
// external visualization and summarization collaborators. Fields that cannot
// be computed from the given input are nil pointers, never misleading zeros.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Source      string    `json:"source,omitempty"`

	BasicStats   BasicStats         `json:"basic_stats"`
	Sessions     SessionStats       `json:"sessions"`
	TimePatterns TimePatterns       `json:"time_patterns"`
	Transitions  TransitionAnalysis `json:"transitions"`
	Patterns     PatternAnalysis    `json:"patterns"`
	SystemEvents SystemEventStats   `json:"system_events"`

	// Warnings collects non-fatal degradations, e.g. statistics skipped for
	// lack of data.
	Warnings []string `json:"warnings,omitempty"`

	// Extra carries unstructured pass-through metadata for the external
	// reporting layer.
	Extra map[string]interface{} `json:"extra,omitempty"`
}

// Percentiles is the standard percentile set reported for distributions.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

// DistributionSummary describes a pooled numeric sample.
type DistributionSummary struct {
	Count       int64       `json:"count"`
	Mean        float64     `json:"mean"`
	Median      float64     `json:"median"`
	Std         float64     `json:"std"`
	Min         float64     `json:"min"`
	Max         float64     `json:"max"`
	Percentiles Percentiles `json:"percentiles"`
}

// EventCount is an event name with its frequency and share of some total.
type EventCount struct {
	Name  string  `json:"event_name"`
	Count int64   `json:"count"`
	Share float64 `json:"share"`
}

// DateRange is the observed time span of the input stream.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Days  float64   `json:"days"`
}

// EventClass is one keyword bucket of event names.
type EventClass struct {
	EventCount   int64    `json:"event_count"`
	UniqueEvents int64    `json:"unique_events"`
	Examples     []string `json:"examples,omitempty"`
}

// BasicStats summarizes the raw stream before any session logic.
type BasicStats struct {
	TotalEvents      int64               `json:"total_events"`
	UniqueUsers      int64               `json:"unique_users"`
	UniqueEventNames int64               `json:"unique_event_names"`
	DateRange        DateRange           `json:"date_range"`
	EventsPerUser    DistributionSummary `json:"events_per_user"`
	TopEvents        []EventCount        `json:"top_events"`

	// EventClasses buckets event names by keyword (authentication, search,
	// selection, transaction, navigation, onboarding, api_calls, other).
	EventClasses map[string]EventClass `json:"event_classes,omitempty"`
}

// TerminalEvent is an event classified as a legitimate session endpoint, with
// the signals that triggered the classification. Best-effort, not ground
// truth.
type TerminalEvent struct {
	Name         string  `json:"event_name"`
	Rarity       float64 `json:"rarity"`
	LastRatio    float64 `json:"last_ratio"`
	KeywordMatch bool    `json:"keyword_match"`
}

// SurvivalPoint is the fraction of sessions that reach at least the given
// event step.
type SurvivalPoint struct {
	Step      int     `json:"step"`
	Surviving float64 `json:"surviving"`
}

// SurvivalDrop marks a step where the survival curve loses more than the
// critical fraction of sessions.
type SurvivalDrop struct {
	Step int     `json:"step"`
	Drop float64 `json:"drop"`
}

// SessionStats carries the reconstructed-session statistics.
type SessionStats struct {
	TotalSessions    int64               `json:"total_sessions"`
	EventsPerSession DistributionSummary `json:"events_per_session"`
	DurationMinutes  DistributionSummary `json:"duration_minutes"`
	SessionsPerUser  DistributionSummary `json:"sessions_per_user"`

	// BounceRate is the fraction of sessions with exactly one event.
	BounceRate float64 `json:"bounce_rate"`

	// IncompleteRate is the fraction of sessions whose event-name set does
	// not intersect the terminal-event set.
	IncompleteRate float64 `json:"incomplete_rate"`

	TerminalEvents    []TerminalEvent `json:"terminal_events"`
	CommonFirstEvents []EventCount    `json:"common_first_events"`
	CommonLastEvents  []EventCount    `json:"common_last_events"`
	SurvivalCurve     []SurvivalPoint `json:"survival_curve,omitempty"`
	CriticalDropoffs  []SurvivalDrop  `json:"critical_dropoffs,omitempty"`
}

// HourCount is an hour of day with its event count.
type HourCount struct {
	Hour  int   `json:"hour"`
	Count int64 `json:"count"`
}

// VelocityStats summarizes sliding-window event velocity across all users.
type VelocityStats struct {
	WindowMinutes   int                 `json:"window_minutes"`
	EventsPerMinute DistributionSummary `json:"events_per_minute"`
}

// PeriodPower is one dominant period from the power spectrum.
type PeriodPower struct {
	Hours float64 `json:"hours"`
	Power float64 `json:"power"`
}

// Periodicity holds the Fourier and autocorrelation results over the hourly
// event-count series. Autocorrelation fields are nil when the series is too
// short for the lag.
type Periodicity struct {
	BucketHours           int           `json:"bucket_hours"`
	Buckets               int           `json:"buckets"`
	DominantPeriods       []PeriodPower `json:"dominant_periods"`
	DailyAutocorrelation  *float64      `json:"daily_autocorrelation,omitempty"`
	WeeklyAutocorrelation *float64      `json:"weekly_autocorrelation,omitempty"`
}

// TimePatterns carries temporal distributions and periodicity.
type TimePatterns struct {
	HourlyCounts    [24]int64        `json:"hourly_counts"`
	DayOfWeekCounts map[string]int64 `json:"day_of_week_counts"`
	PeakHours       []HourCount      `json:"peak_hours"`
	WeekdayEvents   int64            `json:"weekday_events"`
	WeekendEvents   int64            `json:"weekend_events"`

	EventsPerDay      DistributionSummary `json:"events_per_day"`
	ActiveDaysPerUser DistributionSummary `json:"active_days_per_user"`

	// InterEventGapSeconds pools consecutive-event time deltas computed per
	// user. Nil when no user has two or more events.
	InterEventGapSeconds *DistributionSummary `json:"inter_event_gap_seconds,omitempty"`

	// Velocity is nil when no user has enough events for a single window.
	Velocity *VelocityStats `json:"velocity,omitempty"`

	// Periodicity is nil when the stream spans too few hourly buckets.
	Periodicity *Periodicity `json:"periodicity,omitempty"`
}

// Transition is one observed ordered event pair with its empirical
// conditional probability.
type Transition struct {
	From        string  `json:"from"`
	To          string  `json:"to"`
	Count       int64   `json:"count"`
	Probability float64 `json:"probability"`
}

// HighExitEvent is an event disproportionately likely to end a session.
type HighExitEvent struct {
	Name       string  `json:"event_name"`
	ExitRatio  float64 `json:"exit_ratio"`
	LastCount  int64   `json:"last_count"`
	TotalCount int64   `json:"total_count"`
}

// TransitionAnalysis is the first-order Markov model plus derived graph
// analyses.
type TransitionAnalysis struct {
	States           int64   `json:"states"`
	ObservedPairs    int64   `json:"observed_pairs"`
	TotalTransitions int64   `json:"total_transitions"`
	EdgeThreshold    float64 `json:"edge_probability_threshold"`

	MostCommon     []Transition    `json:"most_common"`
	DeadEnds       []string        `json:"dead_ends"`
	HighExitEvents []HighExitEvent `json:"high_exit_events"`

	// CyclicGroups are strongly connected components with more than two
	// members in the thresholded transition graph.
	CyclicGroups [][]string `json:"cyclic_groups"`
}

// Pattern is an ordered contiguous event subsequence with its support.
// SupportCount is the number of distinct sessions containing the sequence;
// Occurrences counts every window hit, including repeats within one session.
type Pattern struct {
	Sequence     []string `json:"sequence"`
	Length       int      `json:"length"`
	SupportCount int64    `json:"support_count"`
	SupportRatio float64  `json:"support_ratio"`
	Occurrences  int64    `json:"occurrences"`
}

// Repetition describes an event observed repeating back-to-back within
// sessions, a friction signal.
type Repetition struct {
	Name             string  `json:"event_name"`
	SessionsAffected int64   `json:"sessions_affected"`
	MeanRunLength    float64 `json:"mean_run_length"`
	MaxRunLength     int64   `json:"max_run_length"`
}

// DropoutTail is a trailing event sequence of sessions that did not end in a
// terminal event.
type DropoutTail struct {
	Sequence []string `json:"sequence"`
	Count    int64    `json:"count"`
}

// SegmentTraits are the mean per-user features of a segment's members.
type SegmentTraits struct {
	AvgEvents     float64 `json:"avg_events"`
	AvgDiversity  float64 `json:"avg_diversity"`
	AvgRepetition float64 `json:"avg_repetition"`
}

// UserSegment is a behavioral cohort of users, bucketed by quantile rules
// over per-user activity features.
type UserSegment struct {
	Label       string        `json:"label"`
	Count       int64         `json:"count"`
	Percentage  float64       `json:"percentage"`
	Traits      SegmentTraits `json:"characteristics"`
	Description string        `json:"description"`
}

// PatternAnalysis is the sequential pattern mining output.
type PatternAnalysis struct {
	TotalSessions   int64         `json:"total_sessions"`
	MinSupportCount int64         `json:"min_support_count"`
	Patterns        []Pattern     `json:"patterns"`
	Repetitions     []Repetition  `json:"repetitions,omitempty"`
	DropoutTails    []DropoutTail `json:"dropout_tails,omitempty"`
	UserSegments    []UserSegment `json:"user_segments,omitempty"`
}

// PushStats describes push notification effectiveness. Rates are computed
// only when delivery events are present in the stream.
type PushStats struct {
	TotalSent    int64            `json:"total_sent"`
	DeliveryRate float64          `json:"delivery_rate"`
	ClickRate    float64          `json:"click_rate"`
	FailureRate  float64          `json:"failure_rate"`
	Breakdown    map[string]int64 `json:"event_breakdown"`
}

// LifecycleStats describes app install/uninstall churn.
type LifecycleStats struct {
	Installs   int64   `json:"total_installs"`
	Uninstalls int64   `json:"total_uninstalls"`
	ChurnRate  float64 `json:"churn_rate"`
}

// SystemEventStats summarizes lifecycle/system event activity.
type SystemEventStats struct {
	Counts    map[string]int64 `json:"counts"`
	Push      *PushStats       `json:"push,omitempty"`
	Lifecycle *LifecycleStats  `json:"lifecycle,omitempty"`
}
