package store

import (
	"sync"

	"github.com/hupe1980/agentfleet/core"
)

// InMemoryTaskStore is a volatile core.TaskStore implementation storing task
// records in a process local map. It is safe for concurrent access and best
// suited for tests or ephemeral demo fleets. Each returned task is cloned to
// prevent external mutation of internal state.
type InMemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[core.TaskID]core.Task
}

// NewInMemoryTaskStore constructs an empty in-memory task store.
func NewInMemoryTaskStore() *InMemoryTaskStore {
	return &InMemoryTaskStore{tasks: make(map[core.TaskID]core.Task)}
}

// Put stores a clone of the provided task snapshot, replacing any previous
// record for the same id.
func (s *InMemoryTaskStore) Put(task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get returns a clone of the stored task record.
func (s *InMemoryTaskStore) Get(id core.TaskID) (core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return core.Task{}, &core.UnknownTaskError{TaskID: id}
	}
	return task.Clone(), nil
}

// List returns clones of all stored task records in unspecified order.
func (s *InMemoryTaskStore) List() ([]core.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task.Clone())
	}
	return out, nil
}

// InMemoryActivityStore is a volatile core.ActivityStateStore keeping the
// monitor's activity map in process memory. It provides no restart safety
// and exists for tests and single-run tooling.
type InMemoryActivityStore struct {
	mu     sync.RWMutex
	states map[core.WorkerID]core.WorkerActivityState
}

// NewInMemoryActivityStore constructs an empty in-memory activity store.
func NewInMemoryActivityStore() *InMemoryActivityStore {
	return &InMemoryActivityStore{}
}

// Save replaces the stored activity map with a copy of the snapshot.
func (s *InMemoryActivityStore) Save(states map[core.WorkerID]core.WorkerActivityState) error {
	copied := make(map[core.WorkerID]core.WorkerActivityState, len(states))
	for id, st := range states {
		copied[id] = st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = copied
	return nil
}

// Load returns a copy of the last saved activity map, or an empty map if
// nothing was saved yet.
func (s *InMemoryActivityStore) Load() (map[core.WorkerID]core.WorkerActivityState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[core.WorkerID]core.WorkerActivityState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out, nil
}
