package core

import (
	"fmt"
	"time"
)

// Classification is the monitor's liveness verdict for a worker.
type Classification int

const (
	// ClassActive means recent activity inside the grace window.
	ClassActive Classification = iota
	// ClassIdle means aging activity, not yet past the stall threshold.
	ClassIdle
	// ClassStalled means inferred inactivity beyond the stall threshold.
	ClassStalled
)

// String returns the string representation of the classification.
func (c Classification) String() string {
	switch c {
	case ClassActive:
		return "active"
	case ClassIdle:
		return "idle"
	case ClassStalled:
		return "stalled"
	default:
		return "unknown"
	}
}

// ParseClassification parses the string representation produced by String.
func ParseClassification(s string) (Classification, error) {
	for c := ClassActive; c <= ClassStalled; c++ {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown classification %q", s)
}

// MarshalText implements encoding.TextMarshaler so persisted records stay
// human-readable.
func (c Classification) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Classification) UnmarshalText(text []byte) error {
	parsed, err := ParseClassification(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// WorkerActivityState is the monitor's per-worker liveness record. It is
// mutated only by the activity monitor and persisted after every monitor
// cycle so a restart resumes with correct cooldown state instead of
// triggering a rescue storm.
//
// LastRescueAt is zero until the first rescue; when set it only ever
// advances forward and is never in the future.
type WorkerActivityState struct {
	Worker         WorkerID       `json:"worker"`
	LastActivityAt time.Time      `json:"last_activity_at"`
	LastRescueAt   time.Time      `json:"last_rescue_at,omitempty"`
	Classification Classification `json:"classification"`
}

// ActivitySource exposes, per worker, a monotonically non-decreasing "last
// observed activity" timestamp derived from side effects the worker
// produces (a file it touches, a report it posts, ...).
//
// A transient read failure is signalled with ErrActivityUnavailable (wrapped
// or bare); the monitor treats it as "unchanged", never as inactivity.
type ActivitySource interface {
	LastActivity(worker WorkerID) (time.Time, error)
}

// ActivityStateStore persists the monitor's full activity map. Save must be
// atomic (write-temp-then-rename or equivalent) so a crash mid-write never
// leaves a truncated record behind.
type ActivityStateStore interface {
	Save(states map[WorkerID]WorkerActivityState) error
	Load() (map[WorkerID]WorkerActivityState, error)
}
