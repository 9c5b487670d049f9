// Package orchestrator implements the fleet's task state machine. It tracks
// task lifecycle from structured worker reports, assigns new tasks by
// submitting assignment nudges to the dispatch queue, and emits verification
// events when tasks reach terminal success.
//
// The allowed transitions live in a data table, not scattered conditionals.
// Reports are applied idempotently: a claimed state that matches the task's
// current state is a no-op, and a claim without a legal edge is rejected
// with an illegal-transition error while the task stays untouched. This is
// what keeps task state consistent under duplicate and out-of-order report
// delivery.
package orchestrator
