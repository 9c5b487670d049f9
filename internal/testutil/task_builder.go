package testutil

import (
	"time"

	"github.com/hupe1980/agentfleet/core"
)

// TaskBuilder helps construct tasks with fluent chaining for tests.
// Example:
//
//	task := NewTaskBuilder("t1").State(core.TaskInProgress).Assignee("w1").Build()
type TaskBuilder struct {
	task core.Task
}

// NewTaskBuilder creates a new builder for a task with the given id. Use
// chainable methods then call Build.
func NewTaskBuilder(id core.TaskID) *TaskBuilder {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &TaskBuilder{task: core.Task{
		ID:          id,
		Description: "test task",
		State:       core.TaskNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
}

// Description sets the task description (chainable).
func (b *TaskBuilder) Description(d string) *TaskBuilder {
	b.task.Description = d
	return b
}

// State sets the lifecycle state (chainable).
func (b *TaskBuilder) State(s core.TaskState) *TaskBuilder {
	b.task.State = s
	return b
}

// Assignee sets the assigned worker (chainable).
func (b *TaskBuilder) Assignee(w core.WorkerID) *TaskBuilder {
	b.task.Assignee = w
	return b
}

// Evidence appends evidence entries (chainable).
func (b *TaskBuilder) Evidence(items ...string) *TaskBuilder {
	b.task.Evidence = append(b.task.Evidence, items...)
	return b
}

// Build returns the constructed task.
func (b *TaskBuilder) Build() core.Task { return b.task.Clone() }
