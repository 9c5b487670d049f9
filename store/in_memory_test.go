package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
)

func sampleTask(id core.TaskID) core.Task {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return core.Task{
		ID:          id,
		Description: "sample",
		State:       core.TaskInProgress,
		Assignee:    "w1",
		Evidence:    []string{"branch pushed"},
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Minute),
	}
}

func TestInMemoryTaskStoreRoundTrip(t *testing.T) {
	s := NewInMemoryTaskStore()

	require.NoError(t, s.Put(sampleTask("t1")))

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, sampleTask("t1"), got)
}

func TestInMemoryTaskStoreUnknownID(t *testing.T) {
	s := NewInMemoryTaskStore()

	_, err := s.Get("missing")

	var unknownErr *core.UnknownTaskError
	assert.ErrorAs(t, err, &unknownErr)
}

func TestInMemoryTaskStoreIsolatesCallers(t *testing.T) {
	s := NewInMemoryTaskStore()
	task := sampleTask("t1")
	require.NoError(t, s.Put(task))

	// Mutating the caller's copy must not leak into the store.
	task.Evidence[0] = "tampered"

	got, err := s.Get("t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"branch pushed"}, got.Evidence)
}

func TestInMemoryTaskStoreList(t *testing.T) {
	s := NewInMemoryTaskStore()
	require.NoError(t, s.Put(sampleTask("t1")))
	require.NoError(t, s.Put(sampleTask("t2")))

	tasks, err := s.List()
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func TestInMemoryActivityStoreRoundTrip(t *testing.T) {
	s := NewInMemoryActivityStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	states := map[core.WorkerID]core.WorkerActivityState{
		"w1": {Worker: "w1", LastActivityAt: now, Classification: core.ClassIdle},
	}
	require.NoError(t, s.Save(states))

	// Mutating the saved map must not leak into the store.
	states["w2"] = core.WorkerActivityState{Worker: "w2"}

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, core.ClassIdle, loaded["w1"].Classification)
}

func TestInMemoryActivityStoreEmptyLoad(t *testing.T) {
	s := NewInMemoryActivityStore()

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}
