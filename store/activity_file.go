package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hupe1980/agentfleet/core"
)

// FileActivityStore persists the monitor's activity map as a single JSON
// document. Save writes to a temporary file in the same directory and
// renames it over the target, so a crash mid-write leaves either the old
// complete document or the new one, never a truncated record.
type FileActivityStore struct {
	path string
}

// NewFileActivityStore constructs a store writing to the given path. The
// parent directory is created if missing.
func NewFileActivityStore(path string) (*FileActivityStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &FileActivityStore{path: path}, nil
}

// Save atomically replaces the persisted activity map.
func (s *FileActivityStore) Save(states map[core.WorkerID]core.WorkerActivityState) error {
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("encode activity state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".activity-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Load reads the persisted activity map. A missing file is not an error; it
// yields an empty map, matching a fleet that was never monitored.
func (s *FileActivityStore) Load() (map[core.WorkerID]core.WorkerActivityState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[core.WorkerID]core.WorkerActivityState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var states map[core.WorkerID]core.WorkerActivityState
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	if states == nil {
		states = map[core.WorkerID]core.WorkerActivityState{}
	}
	return states, nil
}
