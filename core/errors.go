package core

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the coordination engine. Typed errors below
// carry context; both work with errors.Is / errors.As.
var (
	// ErrQueueClosed is returned by Enqueue after the dispatch queue has
	// been shut down.
	ErrQueueClosed = errors.New("dispatch queue closed")

	// ErrAlreadyAssigned is returned by Assign when the task has left
	// TaskNew.
	ErrAlreadyAssigned = errors.New("task already assigned")

	// ErrActivityUnavailable signals a transient activity source read
	// failure. It is logged by the monitor, never propagated as a hard
	// error.
	ErrActivityUnavailable = errors.New("activity source unavailable")
)

// UnknownWorkerError reports a dispatch request targeting a worker the
// queue was not configured with.
type UnknownWorkerError struct {
	Worker WorkerID
}

// Error implements the error interface.
func (e *UnknownWorkerError) Error() string {
	return fmt.Sprintf("unknown worker %q", e.Worker)
}

// UnknownTaskError reports a record referencing a task id the orchestrator
// does not track.
type UnknownTaskError struct {
	TaskID TaskID
}

// Error implements the error interface.
func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("unknown task %q", e.TaskID)
}

// IllegalTransitionError reports a worker report that contradicts the
// allowed-edge table. The task is left untouched; the report is discarded,
// never silently accepted.
type IllegalTransitionError struct {
	TaskID  TaskID
	From    TaskState
	Claimed string
}

// Error implements the error interface.
func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition for task %q: %s -> %q", e.TaskID, e.From, e.Claimed)
}

// TerminalDispatchError reports a dispatch request discarded after
// exhausting all delivery attempts. It is handed to the queue's registered
// error sink, never returned from Enqueue.
type TerminalDispatchError struct {
	Request  DispatchRequest
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *TerminalDispatchError) Error() string {
	return fmt.Sprintf("dispatch to %q failed after %d attempts: %v", e.Request.Target, e.Attempts, e.Err)
}

// Unwrap exposes the final attempt's failure for errors.Is / errors.As.
func (e *TerminalDispatchError) Unwrap() error { return e.Err }
