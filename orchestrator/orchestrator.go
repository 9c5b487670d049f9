package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
)

// Enqueuer is the orchestrator's view of the dispatch queue. The
// orchestrator only enqueues assignment nudges; it never waits for
// delivery.
type Enqueuer interface {
	Enqueue(req core.DispatchRequest) error
}

// Options configures an Orchestrator instance using the functional options
// pattern.
type Options struct {
	// Store persists one record per task, updated per transition. Nil means
	// in-memory only (no restart safety).
	Store core.TaskStore

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger

	// VerificationSink receives exactly one core.VerificationEvent per task
	// reaching completion. Defaults to a no-op consumer.
	VerificationSink func(ev core.VerificationEvent)

	// AssignmentPriority is the priority assigned to assignment requests.
	AssignmentPriority int

	// AssignmentPayload builds the nudge payload describing a task to its
	// new assignee. Defaults to a plain prompt with id and description.
	AssignmentPayload func(task core.Task) string

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

// taskEntry pairs a task record with its own lock so operations on
// different tasks proceed concurrently while operations on one task are
// totally ordered.
type taskEntry struct {
	mu   sync.Mutex
	task core.Task
}

// Orchestrator maintains task records, applies report-driven transitions,
// assigns new tasks via the dispatch queue and emits verification events on
// completion. Public methods are safe for concurrent use.
type Orchestrator struct {
	queue    Enqueuer
	store    core.TaskStore
	logger   logging.Logger
	sink     func(ev core.VerificationEvent)
	payload  func(task core.Task) string
	priority int
	now      func() time.Time

	mu    sync.RWMutex
	tasks map[core.TaskID]*taskEntry

	degradedMu sync.Mutex
	degraded   bool
}

// New constructs an Orchestrator, reloading any previously persisted tasks
// from the configured store.
func New(queue Enqueuer, optFns ...func(o *Options)) (*Orchestrator, error) {
	opts := Options{
		Logger:             logging.NoOpLogger{},
		AssignmentPriority: core.PriorityAssignment,
		Now:                time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.VerificationSink == nil {
		opts.VerificationSink = func(core.VerificationEvent) {}
	}
	if opts.AssignmentPayload == nil {
		opts.AssignmentPayload = func(task core.Task) string {
			return fmt.Sprintf("You are assigned task %s: %s. Report progress as you work.", task.ID, task.Description)
		}
	}

	o := &Orchestrator{
		queue:    queue,
		store:    opts.Store,
		logger:   opts.Logger,
		sink:     opts.VerificationSink,
		payload:  opts.AssignmentPayload,
		priority: opts.AssignmentPriority,
		now:      opts.Now,
		tasks:    make(map[core.TaskID]*taskEntry),
	}

	if o.store != nil {
		persisted, err := o.store.List()
		if err != nil {
			return nil, fmt.Errorf("load task store: %w", err)
		}
		for _, task := range persisted {
			o.tasks[task.ID] = &taskEntry{task: task.Clone()}
		}
	}
	return o, nil
}

// CreateTask registers a new task in state NEW and persists it.
func (o *Orchestrator) CreateTask(description string) (core.Task, error) {
	now := o.now()
	task := core.Task{
		ID:          core.TaskID(core.NewID()),
		Description: description,
		State:       core.TaskNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	o.mu.Lock()
	o.tasks[task.ID] = &taskEntry{task: task}
	o.mu.Unlock()

	o.persist(task)
	o.logger.Info("task created task=%s", task.ID)
	return task.Clone(), nil
}

// Assign hands a NEW task to a worker: the task transitions to ASSIGNED and
// an assignment nudge describing it is enqueued for the worker.
//
// Only valid from NEW; otherwise core.ErrAlreadyAssigned is returned. An
// enqueue rejection is surfaced to the caller while the task remains
// ASSIGNED pending operator intervention.
func (o *Orchestrator) Assign(taskID core.TaskID, worker core.WorkerID) error {
	entry, err := o.entry(taskID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.task.State != core.TaskNew {
		return fmt.Errorf("assign task %q: %w", taskID, core.ErrAlreadyAssigned)
	}

	entry.task.State = core.TaskAssigned
	entry.task.Assignee = worker
	entry.task.UpdatedAt = o.now()
	o.persist(entry.task)
	o.logger.Info("task transition task=%s from=%s to=%s", taskID, core.TaskNew, core.TaskAssigned)

	req := core.DispatchRequest{
		Target:   worker,
		Payload:  o.payload(entry.task),
		Priority: o.priority,
		Kind:     core.KindAssignment,
	}
	if err := o.queue.Enqueue(req); err != nil {
		return fmt.Errorf("enqueue assignment for task %q: %w", taskID, err)
	}
	return nil
}

// ApplyReport applies a structured worker report to its task.
//
// Duplicate claims (the task is already in, or already moved through, the
// claimed state) are an idempotent no-op. A claim without a legal edge
// leaves the task unchanged and returns *core.IllegalTransitionError.
// Evidence is appended, never replaced, on every accepted transition.
func (o *Orchestrator) ApplyReport(rec core.ReportRecord) error {
	entry, err := o.entry(rec.TaskID)
	if err != nil {
		return err
	}

	var event *core.VerificationEvent

	entry.mu.Lock()
	state := entry.task.State

	if alreadyApplied(state, rec.ClaimedState) {
		entry.mu.Unlock()
		o.logger.Debug("duplicate report ignored task=%s claimed=%s", rec.TaskID, rec.ClaimedState)
		return nil
	}

	next, ok := nextState(state, rec.ClaimedState)
	if !ok || (rec.ClaimedState == ClaimCompleted && len(rec.Evidence) == 0) {
		entry.mu.Unlock()
		terr := &core.IllegalTransitionError{TaskID: rec.TaskID, From: state, Claimed: rec.ClaimedState}
		o.logger.Warn("report rejected: %v reporter=%s", terr, rec.Reporter)
		return terr
	}

	entry.task.State = next
	entry.task.Evidence = append(entry.task.Evidence, rec.Evidence...)
	entry.task.UpdatedAt = o.now()
	o.persist(entry.task)
	o.logger.Info("task transition task=%s from=%s to=%s reporter=%s", rec.TaskID, state, next, rec.Reporter)

	if next == core.TaskVerificationPending {
		event = o.verifyLocked(entry)
	}
	entry.mu.Unlock()

	if event != nil {
		o.sink(*event)
	}
	return nil
}

// verifyLocked runs the internal verification step for a task that just
// reached VERIFICATION_PENDING: a trivial pass-through to COMPLETED when
// evidence is present. Caller holds the entry lock. Returns the
// verification event to emit, or nil.
func (o *Orchestrator) verifyLocked(entry *taskEntry) *core.VerificationEvent {
	if len(entry.task.Evidence) == 0 {
		o.logger.Warn("verification held: no evidence task=%s", entry.task.ID)
		return nil
	}

	now := o.now()
	entry.task.State = core.TaskCompleted
	entry.task.UpdatedAt = now
	o.persist(entry.task)
	o.logger.Info("task transition task=%s from=%s to=%s", entry.task.ID, core.TaskVerificationPending, core.TaskCompleted)

	evidence := make([]string, len(entry.task.Evidence))
	copy(evidence, entry.task.Evidence)
	return &core.VerificationEvent{TaskID: entry.task.ID, Evidence: evidence, EmittedAt: now}
}

// ReassignStalled replaces a task's assignee without changing its state.
// Available only while the task is ASSIGNED or IN_PROGRESS; intended to be
// invoked by an external supervisor after repeated rescues failed to
// recover a worker, never automatically.
func (o *Orchestrator) ReassignStalled(taskID core.TaskID, newWorker core.WorkerID) error {
	entry, err := o.entry(taskID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.task.State != core.TaskAssigned && entry.task.State != core.TaskInProgress {
		return fmt.Errorf("cannot reassign task %q in state %s", taskID, entry.task.State)
	}

	prev := entry.task.Assignee
	entry.task.Assignee = newWorker
	entry.task.UpdatedAt = o.now()
	o.persist(entry.task)
	o.logger.Info("task reassigned task=%s from_worker=%s to_worker=%s", taskID, prev, newWorker)
	return nil
}

// Get returns a snapshot of one task.
func (o *Orchestrator) Get(taskID core.TaskID) (core.Task, error) {
	entry, err := o.entry(taskID)
	if err != nil {
		return core.Task{}, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.task.Clone(), nil
}

// Tasks returns a snapshot of all tracked tasks.
func (o *Orchestrator) Tasks() []core.Task {
	o.mu.RLock()
	entries := make([]*taskEntry, 0, len(o.tasks))
	for _, e := range o.tasks {
		entries = append(entries, e)
	}
	o.mu.RUnlock()

	out := make([]core.Task, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.task.Clone())
		e.mu.Unlock()
	}
	return out
}

// Degraded reports whether the last persistence attempt failed even after
// its immediate retry; the orchestrator keeps operating in-memory.
func (o *Orchestrator) Degraded() bool {
	o.degradedMu.Lock()
	defer o.degradedMu.Unlock()
	return o.degraded
}

// entry resolves a task id to its live entry.
func (o *Orchestrator) entry(taskID core.TaskID) (*taskEntry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	entry, ok := o.tasks[taskID]
	if !ok {
		return nil, &core.UnknownTaskError{TaskID: taskID}
	}
	return entry, nil
}

// persist writes one task record, retrying once immediately on failure.
// After a second failure the orchestrator continues in-memory and raises
// the degraded flag.
func (o *Orchestrator) persist(task core.Task) {
	if o.store == nil {
		return
	}
	err := o.store.Put(task.Clone())
	if err != nil {
		err = o.store.Put(task.Clone())
	}

	o.degradedMu.Lock()
	o.degraded = err != nil
	o.degradedMu.Unlock()

	if err != nil {
		o.logger.Error("task persistence failed, operating in-memory: task=%s err=%v", task.ID, err)
	}
}
