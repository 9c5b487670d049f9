package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskID uniquely identifies a task for its whole lifetime.
type TaskID string

// TaskState is the lifecycle state of a task. A task is in exactly one
// state at all times and only ever changes state through the orchestrator's
// transition table.
type TaskState int

const (
	// TaskNew is the initial state of a freshly created task.
	TaskNew TaskState = iota
	// TaskAssigned means a worker has been given the task.
	TaskAssigned
	// TaskInProgress means the assignee reported active work.
	TaskInProgress
	// TaskBlocked means the assignee reported being stuck on a dependency.
	TaskBlocked
	// TaskVerificationPending means completion was claimed with evidence and
	// awaits the internal verification step.
	TaskVerificationPending
	// TaskCompleted is terminal success.
	TaskCompleted
	// TaskFailed is terminal failure.
	TaskFailed
)

// String returns the string representation of the task state.
func (s TaskState) String() string {
	switch s {
	case TaskNew:
		return "new"
	case TaskAssigned:
		return "assigned"
	case TaskInProgress:
		return "in_progress"
	case TaskBlocked:
		return "blocked"
	case TaskVerificationPending:
		return "verification_pending"
	case TaskCompleted:
		return "completed"
	case TaskFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state has no outgoing edges.
func (s TaskState) Terminal() bool { return s == TaskCompleted || s == TaskFailed }

// ParseTaskState parses the string representation produced by String.
func ParseTaskState(s string) (TaskState, error) {
	for state := TaskNew; state <= TaskFailed; state++ {
		if state.String() == s {
			return state, nil
		}
	}
	return 0, fmt.Errorf("unknown task state %q", s)
}

// MarshalText implements encoding.TextMarshaler so persisted records stay
// human-readable.
func (s TaskState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TaskState) UnmarshalText(text []byte) error {
	state, err := ParseTaskState(string(text))
	if err != nil {
		return err
	}
	*s = state
	return nil
}

// Task is a unit of long-running work tracked by the orchestrator. Tasks are
// created in TaskNew, mutated only through the orchestrator's transition
// function, and never deleted; they terminate into TaskCompleted or
// TaskFailed.
//
// Evidence is an ordered, append-only list: every accepted report-driven
// transition appends the report's evidence, it is never replaced.
type Task struct {
	ID          TaskID    `json:"id"`
	Description string    `json:"description"`
	State       TaskState `json:"state"`
	Assignee    WorkerID  `json:"assignee,omitempty"`
	Evidence    []string  `json:"evidence,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Clone returns a deep copy of the task safe for independent mutation.
func (t Task) Clone() Task {
	clone := t
	if t.Evidence != nil {
		clone.Evidence = make([]string, len(t.Evidence))
		copy(clone.Evidence, t.Evidence)
	}
	return clone
}

// VerificationEvent is emitted exactly once per task reaching TaskCompleted.
// It is immutable and carries the task's accumulated evidence for an
// external verification consumer.
type VerificationEvent struct {
	TaskID    TaskID    `json:"task_id"`
	Evidence  []string  `json:"evidence,omitempty"`
	EmittedAt time.Time `json:"emitted_at"`
}

// ReportRecord is an inbound, worker-originated status update about a task.
// Delivery is at-least-once and unordered across workers, so the
// orchestrator must tolerate duplicates (idempotent re-application) and
// out-of-order arrival across different tasks.
type ReportRecord struct {
	TaskID       TaskID    `json:"task_id"`
	Reporter     WorkerID  `json:"reporter"`
	ClaimedState string    `json:"claimed_state"`
	Evidence     []string  `json:"evidence,omitempty"`
	ReportedAt   time.Time `json:"reported_at"`
}

// TaskStore persists task records, one per task keyed by id, updated
// atomically per transition.
type TaskStore interface {
	Put(task Task) error
	Get(id TaskID) (Task, error)
	List() ([]Task, error)
}

// NewID generates a new unique identifier for tasks and correlation.
//
// Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
