package orchestrator

import "github.com/hupe1980/agentfleet/core"

// Claimed state strings accepted on the report channel. Anything else never
// matches an edge and is rejected as an illegal transition.
const (
	ClaimInProgress = "in_progress"
	ClaimBlocked    = "blocked"
	ClaimCompleted  = "completed"
	ClaimFailed     = "failed"
)

// reportEdges is the allowed-edge table for report-driven transitions:
// current state -> claimed state -> next state. Assignment (NEW -> ASSIGNED)
// and verification (VERIFICATION_PENDING -> COMPLETED) are internal actions
// and deliberately absent.
var reportEdges = map[core.TaskState]map[string]core.TaskState{
	core.TaskAssigned: {
		ClaimInProgress: core.TaskInProgress,
		ClaimFailed:     core.TaskFailed,
	},
	core.TaskInProgress: {
		ClaimBlocked:   core.TaskBlocked,
		ClaimCompleted: core.TaskVerificationPending,
		ClaimFailed:    core.TaskFailed,
	},
	core.TaskBlocked: {
		ClaimInProgress: core.TaskInProgress,
		ClaimFailed:     core.TaskFailed,
	},
}

// claimedTarget maps a claimed state string onto the state a task would
// occupy once that claim has been applied. Used for idempotent re-application:
// a report claiming the state the task is already in (or has already moved
// through, for "completed") is a no-op rather than an error.
var claimedTarget = map[string][]core.TaskState{
	ClaimInProgress: {core.TaskInProgress},
	ClaimBlocked:    {core.TaskBlocked},
	ClaimCompleted:  {core.TaskVerificationPending, core.TaskCompleted},
	ClaimFailed:     {core.TaskFailed},
}

// alreadyApplied reports whether the claim is a duplicate of a transition
// the task has already taken.
func alreadyApplied(state core.TaskState, claimed string) bool {
	for _, s := range claimedTarget[claimed] {
		if s == state {
			return true
		}
	}
	return false
}

// nextState resolves the edge table; ok is false when the claim has no legal
// edge from the current state.
func nextState(state core.TaskState, claimed string) (core.TaskState, bool) {
	edges, ok := reportEdges[state]
	if !ok {
		return 0, false
	}
	next, ok := edges[claimed]
	return next, ok
}
