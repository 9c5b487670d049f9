package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
)

// FileSourceOptions configures a FileSource using the functional options
// pattern.
type FileSourceOptions struct {
	// FileName maps a worker id to its touch file name inside the watched
	// directory. Defaults to "<worker-id>.touch".
	FileName func(worker core.WorkerID) string

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger
}

// FileSource is a core.ActivitySource backed by per-worker touch files in a
// single directory: a worker signals liveness by updating its file, and the
// file's observed write time becomes the worker's activity timestamp.
//
// Timestamps are seeded from file modification times at construction and
// advanced by filesystem notifications afterwards, so the source keeps
// working across coordinator restarts. Observed times only ever move
// forward.
type FileSource struct {
	dir      string
	fileName func(worker core.WorkerID) string
	logger   logging.Logger
	watcher  *fsnotify.Watcher

	mu       sync.Mutex
	lastSeen map[string]time.Time
	closed   chan struct{}
}

// NewFileSource watches dir for touch-file updates. The directory is
// created if missing.
func NewFileSource(dir string, optFns ...func(o *FileSourceOptions)) (*FileSource, error) {
	opts := FileSourceOptions{
		FileName: func(worker core.WorkerID) string { return string(worker) + ".touch" },
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create activity directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	s := &FileSource{
		dir:      dir,
		fileName: opts.FileName,
		logger:   opts.Logger,
		watcher:  watcher,
		lastSeen: make(map[string]time.Time),
		closed:   make(chan struct{}),
	}
	s.seed()
	go s.watch()
	return s, nil
}

// seed records the current modification time of every file already present
// in the directory.
func (s *FileSource) seed() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("activity seed failed dir=%s err=%v", s.dir, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		s.lastSeen[entry.Name()] = info.ModTime()
	}
}

// watch consumes filesystem notifications until Close.
func (s *FileSource) watch() {
	for {
		select {
		case <-s.closed:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Chmod) {
				continue
			}
			s.record(filepath.Base(ev.Name), time.Now())
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("activity watcher error: %v", err)
		}
	}
}

// record advances a file's observed activity, never regressing it.
func (s *FileSource) record(name string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at.After(s.lastSeen[name]) {
		s.lastSeen[name] = at
	}
}

// LastActivity implements core.ActivitySource. A worker whose touch file
// was never observed and cannot be stat'ed reports
// core.ErrActivityUnavailable.
func (s *FileSource) LastActivity(worker core.WorkerID) (time.Time, error) {
	name := s.fileName(worker)

	s.mu.Lock()
	seen, ok := s.lastSeen[name]
	s.mu.Unlock()
	if ok {
		return seen, nil
	}

	// Not yet observed through the watcher; fall back to a direct stat so a
	// source constructed after the file appeared still answers.
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return time.Time{}, fmt.Errorf("stat touch file for %s: %w", worker, core.ErrActivityUnavailable)
	}

	s.record(name, info.ModTime())
	return info.ModTime(), nil
}

// Close stops the watcher. The source keeps answering from its last
// observed timestamps afterwards.
func (s *FileSource) Close() error {
	select {
	case <-s.closed:
		return nil
	default:
	}
	close(s.closed)
	return s.watcher.Close()
}
