package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
)

func TestFileActivityStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "activity.json")
	s, err := NewFileActivityStore(path)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	states := map[core.WorkerID]core.WorkerActivityState{
		"w1": {Worker: "w1", LastActivityAt: now, LastRescueAt: now.Add(-time.Hour), Classification: core.ClassStalled},
		"w2": {Worker: "w2", LastActivityAt: now, Classification: core.ClassActive},
	}
	require.NoError(t, s.Save(states))

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, states, loaded)
}

func TestFileActivityStoreMissingFile(t *testing.T) {
	s, err := NewFileActivityStore(filepath.Join(t.TempDir(), "activity.json"))
	require.NoError(t, err)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestFileActivityStoreHumanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.json")
	s, err := NewFileActivityStore(path)
	require.NoError(t, err)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(map[core.WorkerID]core.WorkerActivityState{
		"w1": {Worker: "w1", LastActivityAt: now, Classification: core.ClassStalled},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"stalled"`), "classification must persist by name, got: %s", data)
}

func TestFileActivityStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileActivityStore(path)
	require.NoError(t, err)

	_, err = s.Load()
	assert.Error(t, err)
}

func TestFileActivityStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileActivityStore(filepath.Join(dir, "activity.json"))
	require.NoError(t, err)

	require.NoError(t, s.Save(map[core.WorkerID]core.WorkerActivityState{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "activity.json", entries[0].Name())
}
