// Package agentfleet provides a high-level façade over the coordination
// engine for fleets of long-running autonomous workers: the dispatch queue,
// the activity monitor and the task orchestrator wired together. Most
// applications interact with this package by:
//  1. Creating a Fleet via New() with their worker set, injection driver and
//     activity source (optionally overriding the default in-memory stores)
//  2. Starting the background loops with Start()
//  3. Creating and assigning tasks, feeding worker reports in via
//     ApplyReport and submitting ad-hoc nudges
//
// The façade delegates to dispatch.Queue, monitor.Monitor and
// orchestrator.Orchestrator while keeping setup ergonomics concise. All
// defaults are safe for local development and testing; production
// deployments typically supply durable stores and a structured logger.
package agentfleet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/dispatch"
	"github.com/hupe1980/agentfleet/logging"
	"github.com/hupe1980/agentfleet/monitor"
	"github.com/hupe1980/agentfleet/orchestrator"
	"github.com/hupe1980/agentfleet/store"
)

// Options configures the Fleet instance.
type Options struct {
	// DispatchConfig tunes delivery retry behavior.
	DispatchConfig dispatch.Config

	// MonitorConfig tunes liveness classification and rescue timing.
	MonitorConfig monitor.Config

	// Stores (default to in-memory implementations if not provided).
	TaskStore     core.TaskStore
	ActivityStore core.ActivityStateStore

	// ErrorSink receives terminal dispatch errors after retries are
	// exhausted. Defaults to logging only.
	ErrorSink func(error)

	// VerificationSink receives one core.VerificationEvent per completed
	// task. Defaults to a no-op consumer.
	VerificationSink func(ev core.VerificationEvent)

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

// Fleet is the high-level façade aggregating the queue, monitor and
// orchestrator.
type Fleet struct {
	workers []core.Worker
	queue   *dispatch.Queue
	monitor *monitor.Monitor
	orch    *orchestrator.Orchestrator
	logger  logging.Logger
	now     func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	wg      sync.WaitGroup
}

// New creates a Fleet for a fixed worker set. The driver performs physical
// nudge injection; the source supplies per-worker activity timestamps. Any
// unset store is initialized with an in-memory implementation.
func New(workers []core.Worker, driver core.InjectionDriver, source core.ActivitySource, optFns ...func(o *Options)) (*Fleet, error) {
	opts := Options{
		DispatchConfig: dispatch.DefaultConfig,
		MonitorConfig:  monitor.DefaultConfig,
		TaskStore:      store.NewInMemoryTaskStore(),
		ActivityStore:  store.NewInMemoryActivityStore(),
		Logger:         logging.NoOpLogger{},
		Now:            time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if len(workers) == 0 {
		return nil, errors.New("agentfleet: at least one worker is required")
	}
	if driver == nil {
		return nil, errors.New("agentfleet: injection driver is required")
	}
	if source == nil {
		return nil, errors.New("agentfleet: activity source is required")
	}

	queue := dispatch.New(driver, workers, func(o *dispatch.Options) {
		o.Config = opts.DispatchConfig
		o.Logger = opts.Logger
		o.ErrorSink = opts.ErrorSink
		o.Now = opts.Now
	})

	mon, err := monitor.New(source, queue, workers, func(o *monitor.Options) {
		o.Config = opts.MonitorConfig
		o.Store = opts.ActivityStore
		o.Logger = opts.Logger
		o.Now = opts.Now
	})
	if err != nil {
		return nil, fmt.Errorf("agentfleet: %w", err)
	}

	orch, err := orchestrator.New(queue, func(o *orchestrator.Options) {
		o.Store = opts.TaskStore
		o.Logger = opts.Logger
		o.VerificationSink = opts.VerificationSink
		o.Now = opts.Now
	})
	if err != nil {
		return nil, fmt.Errorf("agentfleet: %w", err)
	}

	return &Fleet{
		workers: workers,
		queue:   queue,
		monitor: mon,
		orch:    orch,
		logger:  opts.Logger,
		now:     opts.Now,
	}, nil
}

// Start launches the dispatch drain loop and the monitor cycle loop. It
// returns immediately; both loops run until Stop (or ctx cancellation).
func (f *Fleet) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started {
		return errors.New("agentfleet: already started")
	}
	f.started = true

	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel

	f.wg.Add(2)
	go func() {
		defer f.wg.Done()
		if err := f.queue.Drain(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("dispatch loop exited: %v", err)
		}
	}()
	go func() {
		defer f.wg.Done()
		if err := f.monitor.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			f.logger.Error("monitor loop exited: %v", err)
		}
	}()

	f.logger.Info("fleet started workers=%d", len(f.workers))
	return nil
}

// Stop shuts down the background loops: new enqueues are rejected, waiting
// requests are abandoned and in-flight deliveries are given a chance to
// finish. Safe to call once after a successful Start.
func (f *Fleet) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.started || f.cancel == nil {
		return
	}

	f.queue.Close()
	f.cancel()
	f.wg.Wait()
	f.cancel = nil
	f.logger.Info("fleet stopped")
}

// CreateTask registers a new task in state NEW.
func (f *Fleet) CreateTask(description string) (core.Task, error) {
	return f.orch.CreateTask(description)
}

// Assign hands a NEW task to a worker and enqueues the assignment nudge.
func (f *Fleet) Assign(taskID core.TaskID, worker core.WorkerID) error {
	return f.orch.Assign(taskID, worker)
}

// ApplyReport feeds one inbound worker report into the engine. The report
// counts as activity for its reporter even when the claimed transition is
// rejected: a worker coherent enough to post a report is not stalled.
func (f *Fleet) ApplyReport(rec core.ReportRecord) error {
	at := rec.ReportedAt
	if at.IsZero() {
		at = f.now()
	}
	f.monitor.RecordReport(rec.Reporter, at)
	return f.orch.ApplyReport(rec)
}

// Nudge enqueues an ad-hoc prompt injection for a worker at standard nudge
// priority.
func (f *Fleet) Nudge(worker core.WorkerID, payload string) error {
	return f.queue.Enqueue(core.DispatchRequest{
		Target:   worker,
		Payload:  payload,
		Priority: core.PriorityNudge,
		Kind:     core.KindNudge,
	})
}

// ReassignStalled replaces a task's assignee after rescues failed to
// recover the original worker.
func (f *Fleet) ReassignStalled(taskID core.TaskID, newWorker core.WorkerID) error {
	return f.orch.ReassignStalled(taskID, newWorker)
}

// ClearPending drops waiting dispatch requests for the named workers (all
// workers when none are named) and returns the number dropped.
func (f *Fleet) ClearPending(workers ...core.WorkerID) int {
	return f.queue.ClearPending(workers...)
}

// Task returns a snapshot of one task.
func (f *Fleet) Task(taskID core.TaskID) (core.Task, error) { return f.orch.Get(taskID) }

// Tasks returns a snapshot of all tracked tasks.
func (f *Fleet) Tasks() []core.Task { return f.orch.Tasks() }

// QueueStatus reports the dispatch queue's per-worker lock and backlog
// state.
func (f *Fleet) QueueStatus() dispatch.Status { return f.queue.Status() }

// WorkerStates returns the monitor's current per-worker liveness map.
func (f *Fleet) WorkerStates() map[core.WorkerID]core.WorkerActivityState {
	return f.monitor.States()
}

// Degraded reports whether any persistence layer is currently failing; the
// engine keeps operating in-memory while degraded.
func (f *Fleet) Degraded() bool { return f.monitor.Degraded() || f.orch.Degraded() }
