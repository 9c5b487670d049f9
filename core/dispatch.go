package core

import (
	"context"
	"time"
)

// DispatchKind categorizes why a payload is being injected into a worker's
// session. The kind never changes delivery mechanics; it exists for
// prioritization defaults, logging and observability.
type DispatchKind int

const (
	// KindNudge is an ordinary operator or orchestration prompt.
	KindNudge DispatchKind = iota
	// KindRescue is a nudge issued because the worker appears stalled.
	KindRescue
	// KindAssignment carries a task assignment description.
	KindAssignment
)

// String returns the string representation of the dispatch kind.
func (k DispatchKind) String() string {
	switch k {
	case KindNudge:
		return "nudge"
	case KindRescue:
		return "rescue"
	case KindAssignment:
		return "assignment"
	default:
		return "unknown"
	}
}

// Default priorities per kind. Lower numbers are served first. Rescues jump
// the queue so a stalled worker is unblocked before ordinary traffic; these
// are configuration defaults, not invariants.
const (
	PriorityRescue     = 0
	PriorityAssignment = 10
	PriorityNudge      = 20
)

// DispatchRequest is a single outbound nudge awaiting delivery. It is
// created by a producer (orchestrator, monitor, or an external caller),
// consumed exactly once by the dispatch queue (success or terminal failure)
// and then discarded.
//
// Ordering contract: per worker, lower Priority is served first; ties are
// broken by submission order (FIFO). Across workers there is no ordering
// relationship.
type DispatchRequest struct {
	Target      WorkerID     `json:"target"`
	Payload     string       `json:"payload"`
	Priority    int          `json:"priority"`
	Kind        DispatchKind `json:"kind"`
	SubmittedAt time.Time    `json:"submitted_at"`
}

// InjectionDriver performs the single opaque "deliver payload to worker
// session" operation. Implementations may block, fail or time out; the
// dispatch queue owns retry and timeout policy.
//
// Deliver must be idempotent-safe to retry: repeated delivery of the same
// payload is tolerable (possibly visible to the worker) but must not corrupt
// worker state. Once Deliver has started, the physical injection is not
// cancellable; ctx only bounds how long the queue waits for the attempt.
type InjectionDriver interface {
	Deliver(ctx context.Context, handle string, payload string) error
}
