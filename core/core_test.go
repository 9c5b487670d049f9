package core_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/internal/testutil"
)

func TestTaskStateRoundTrip(t *testing.T) {
	for state := core.TaskNew; state <= core.TaskFailed; state++ {
		parsed, err := core.ParseTaskState(state.String())
		require.NoError(t, err)
		assert.Equal(t, state, parsed)
	}

	_, err := core.ParseTaskState("half_done")
	assert.Error(t, err)
}

func TestTaskStateTerminal(t *testing.T) {
	assert.True(t, core.TaskCompleted.Terminal())
	assert.True(t, core.TaskFailed.Terminal())
	assert.False(t, core.TaskNew.Terminal())
	assert.False(t, core.TaskVerificationPending.Terminal())
}

func TestClassificationRoundTrip(t *testing.T) {
	for c := core.ClassActive; c <= core.ClassStalled; c++ {
		parsed, err := core.ParseClassification(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := core.ParseClassification("asleep")
	assert.Error(t, err)
}

func TestDispatchKindString(t *testing.T) {
	assert.Equal(t, "nudge", core.KindNudge.String())
	assert.Equal(t, "rescue", core.KindRescue.String())
	assert.Equal(t, "assignment", core.KindAssignment.String())
}

func TestTaskCloneIsolatesEvidence(t *testing.T) {
	task := testutil.NewTaskBuilder("t1").
		State(core.TaskInProgress).
		Assignee("w1").
		Evidence("branch pushed").
		Build()

	clone := task.Clone()
	clone.Evidence[0] = "tampered"

	assert.Equal(t, []string{"branch pushed"}, task.Evidence)
}

func TestTerminalDispatchErrorUnwraps(t *testing.T) {
	cause := errors.New("pane vanished")
	err := &core.TerminalDispatchError{
		Request:  core.DispatchRequest{Target: "w1", Kind: core.KindRescue},
		Attempts: 5,
		Err:      cause,
	}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "after 5 attempts")
}

func TestTypedErrorsMatchWithAs(t *testing.T) {
	var unknownWorker *core.UnknownWorkerError
	assert.ErrorAs(t, fmt.Errorf("wrapped: %w", &core.UnknownWorkerError{Worker: "w9"}), &unknownWorker)
	assert.Equal(t, core.WorkerID("w9"), unknownWorker.Worker)

	var illegal *core.IllegalTransitionError
	wrapped := fmt.Errorf("wrapped: %w", &core.IllegalTransitionError{TaskID: "t1", From: core.TaskNew, Claimed: "completed"})
	assert.ErrorAs(t, wrapped, &illegal)
	assert.Contains(t, illegal.Error(), "illegal transition")
}

func TestReportBuilder(t *testing.T) {
	rec := testutil.NewReportBuilder("t1", "completed").
		Reporter("w2").
		Evidence("diff", "test log").
		Build()

	assert.Equal(t, core.TaskID("t1"), rec.TaskID)
	assert.Equal(t, core.WorkerID("w2"), rec.Reporter)
	assert.Equal(t, []string{"diff", "test log"}, rec.Evidence)
}

func TestNewIDIsUnique(t *testing.T) {
	assert.NotEqual(t, core.NewID(), core.NewID())
}
