package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/logging"
)

// Config defines the monitor's timing discipline.
type Config struct {
	// CheckInterval is how often a classification cycle runs.
	CheckInterval time.Duration

	// ActiveGrace is the age below which a worker is always classified
	// active regardless of anything else.
	ActiveGrace time.Duration

	// StallThreshold is the age above which a worker is classified stalled.
	// Ages between ActiveGrace and StallThreshold (inclusive) are idle.
	StallThreshold time.Duration

	// RescueCooldown is the minimum time between rescues for the same
	// worker.
	RescueCooldown time.Duration

	// RescuePriority is the priority assigned to rescue requests.
	RescuePriority int

	// RescuePayload builds the rescue nudge payload for a worker. Defaults
	// to a generic "are you stuck" prompt.
	RescuePayload func(w core.Worker) string
}

// DefaultConfig provides conservative production defaults: a worker has to
// be quiet for twenty minutes before the first rescue, and rescues repeat at
// most every five minutes.
var DefaultConfig = Config{
	CheckInterval:  30 * time.Second,
	ActiveGrace:    5 * time.Minute,
	StallThreshold: 20 * time.Minute,
	RescueCooldown: 5 * time.Minute,
	RescuePriority: core.PriorityRescue,
}

// Enqueuer is the monitor's view of the dispatch queue. The monitor only
// enqueues; it never waits for delivery.
type Enqueuer interface {
	Enqueue(req core.DispatchRequest) error
}

// Options configures a Monitor instance using the functional options pattern.
type Options struct {
	// Config contains the timing discipline. Defaults to DefaultConfig.
	Config Config

	// Store persists the activity map after every cycle and supplies the
	// initial state at construction. Defaults to an ephemeral in-process
	// map (no restart safety).
	Store core.ActivityStateStore

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

// Monitor infers worker liveness from indirect signals and triggers rescue
// nudges conservatively.
//
// Failure semantics: an unreachable activity source leaves the worker's
// recorded activity unchanged (never advanced, never regressed) and logs a
// warning. A single failed read additionally suppresses stalled
// classification for that cycle; only two consecutive failed reads allow
// the age-based stalled verdict to fire again, so one transient read error
// can never cause a false rescue.
type Monitor struct {
	cfg     Config
	source  core.ActivitySource
	queue   Enqueuer
	workers []core.Worker
	store   core.ActivityStateStore
	logger  logging.Logger
	now     func() time.Time

	mu           sync.Mutex
	states       map[core.WorkerID]*core.WorkerActivityState
	readFailures map[core.WorkerID]int
	reported     map[core.WorkerID]time.Time
	degraded     bool
}

// New constructs a Monitor for the given fleet, reloading persisted activity
// state so restarts do not reset rescue cooldowns. A store load failure is
// returned to the caller; starting with a blank map after a crash is exactly
// the rescue-storm scenario persistence exists to prevent.
func New(source core.ActivitySource, queue Enqueuer, workers []core.Worker, optFns ...func(o *Options)) (*Monitor, error) {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.RescuePayload == nil {
		opts.Config.RescuePayload = func(w core.Worker) string {
			return fmt.Sprintf("You appear to have stalled, %s. Report your current task state and continue.", w.ID)
		}
	}

	m := &Monitor{
		cfg:          opts.Config,
		source:       source,
		queue:        queue,
		workers:      workers,
		store:        opts.Store,
		logger:       opts.Logger,
		now:          opts.Now,
		states:       make(map[core.WorkerID]*core.WorkerActivityState, len(workers)),
		readFailures: make(map[core.WorkerID]int, len(workers)),
		reported:     make(map[core.WorkerID]time.Time, len(workers)),
	}

	if m.store != nil {
		persisted, err := m.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load activity state: %w", err)
		}
		for id, st := range persisted {
			s := st
			m.states[id] = &s
		}
	}
	return m, nil
}

// Run executes classification cycles every CheckInterval until ctx is
// cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.cycle(m.now())
		}
	}
}

// RecordReport feeds a worker report into the liveness signal: a report is
// itself evidence of activity. The timestamp only ever moves activity
// forward.
func (m *Monitor) RecordReport(worker core.WorkerID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if at.After(m.reported[worker]) {
		m.reported[worker] = at
	}
}

// States returns a snapshot of the per-worker activity map, for
// observability.
func (m *Monitor) States() map[core.WorkerID]core.WorkerActivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[core.WorkerID]core.WorkerActivityState, len(m.states))
	for id, st := range m.states {
		out[id] = *st
	}
	return out
}

// Degraded reports whether the last persistence attempt failed even after
// its immediate retry. The monitor keeps operating in-memory; operators
// must be told the durability guarantee is degraded.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// cycle runs one full classification pass at the given instant.
func (m *Monitor) cycle(now time.Time) {
	m.mu.Lock()

	for _, w := range m.workers {
		st, ok := m.states[w.ID]
		if !ok {
			// First observation: treat monitor start as activity so a fresh
			// worker is not rescued before it had a chance to do anything.
			st = &core.WorkerActivityState{Worker: w.ID, LastActivityAt: now}
			m.states[w.ID] = st
		}

		observed, err := m.source.LastActivity(w.ID)
		if err != nil {
			m.readFailures[w.ID]++
			m.logger.Warn("activity read failed worker=%s consecutive=%d err=%v", w.ID, m.readFailures[w.ID], err)
		} else {
			m.readFailures[w.ID] = 0
			if observed.After(st.LastActivityAt) {
				st.LastActivityAt = observed
			}
		}
		if rep := m.reported[w.ID]; rep.After(st.LastActivityAt) {
			st.LastActivityAt = rep
		}

		age := now.Sub(st.LastActivityAt)
		class := m.classify(age)
		if class == core.ClassStalled && m.readFailures[w.ID] == 1 {
			// One transient read failure must never produce a rescue.
			class = core.ClassIdle
		}
		st.Classification = class

		if class == core.ClassStalled && m.rescueEligible(st, now) {
			req := core.DispatchRequest{
				Target:      w.ID,
				Payload:     m.cfg.RescuePayload(w),
				Priority:    m.cfg.RescuePriority,
				Kind:        core.KindRescue,
				SubmittedAt: now,
			}
			// Enqueue is non-blocking in-memory work; the cooldown clock
			// starts only once the rescue is actually accepted, so a
			// rejected rescue is retried on the next cycle.
			if err := m.queue.Enqueue(req); err != nil {
				m.logger.Error("rescue enqueue rejected worker=%s err=%v", w.ID, err)
			} else {
				st.LastRescueAt = now
				m.logger.Warn("rescue submitted worker=%s inactive_for=%s", w.ID, age)
			}
		}
	}

	snapshot := make(map[core.WorkerID]core.WorkerActivityState, len(m.states))
	for id, st := range m.states {
		snapshot[id] = *st
	}
	m.mu.Unlock()

	m.persist(snapshot)
}

// classify maps an activity age onto the three-way liveness verdict. The
// boundary at StallThreshold itself is idle, not stalled.
func (m *Monitor) classify(age time.Duration) core.Classification {
	switch {
	case age < m.cfg.ActiveGrace:
		return core.ClassActive
	case age > m.cfg.StallThreshold:
		return core.ClassStalled
	default:
		return core.ClassIdle
	}
}

// rescueEligible applies the cooldown gate: never rescued, or the cooldown
// has fully elapsed.
func (m *Monitor) rescueEligible(st *core.WorkerActivityState, now time.Time) bool {
	return st.LastRescueAt.IsZero() || now.Sub(st.LastRescueAt) > m.cfg.RescueCooldown
}

// persist writes the activity map, retrying once immediately on failure.
// After a second failure the monitor continues in-memory and raises the
// degraded flag.
func (m *Monitor) persist(snapshot map[core.WorkerID]core.WorkerActivityState) {
	if m.store == nil {
		return
	}
	err := m.store.Save(snapshot)
	if err != nil {
		err = m.store.Save(snapshot)
	}

	m.mu.Lock()
	m.degraded = err != nil
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("activity state persistence failed, operating in-memory: %v", err)
	}
}
