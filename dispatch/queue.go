package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/internal/backoff"
	"github.com/hupe1980/agentfleet/logging"
)

// Config defines tuning parameters for queue delivery behavior. The retry
// fields describe an exponential backoff applied between failed delivery
// attempts; the worker's lock is held for the whole retry sequence, so no
// other request for that worker proceeds mid-retry.
type Config struct {
	// RetryBase is the delay before the second attempt.
	RetryBase time.Duration

	// RetryFactor multiplies the delay after every failed attempt.
	RetryFactor float64

	// RetryCap bounds the delay between attempts.
	RetryCap time.Duration

	// MaxAttempts is the total number of delivery attempts per request.
	MaxAttempts int

	// AttemptTimeout bounds a single driver call. Exceeding it counts as an
	// attempt failure and proceeds to backoff/retry. Zero disables the
	// per-attempt deadline.
	AttemptTimeout time.Duration
}

// DefaultConfig provides the documented retry discipline: five attempts,
// base 1s, factor 2, cap 30s, 30s per attempt.
var DefaultConfig = Config{
	RetryBase:      backoff.Default.Base,
	RetryFactor:    backoff.Default.Factor,
	RetryCap:       backoff.Default.Cap,
	MaxAttempts:    backoff.Default.MaxAttempts,
	AttemptTimeout: 30 * time.Second,
}

// policy converts the flat retry fields to the internal backoff policy.
func (c Config) policy() backoff.Policy {
	return backoff.Policy{
		Base:        c.RetryBase,
		Factor:      c.RetryFactor,
		Cap:         c.RetryCap,
		MaxAttempts: c.MaxAttempts,
	}
}

// Options configures a Queue instance using the functional options pattern.
type Options struct {
	// Config contains delivery tuning parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOp logger if nil.
	Logger logging.Logger

	// ErrorSink receives terminal dispatch errors (*core.TerminalDispatchError)
	// after retries are exhausted. Defaults to logging only.
	ErrorSink func(error)

	// Now allows tests to control time. Defaults to time.Now.
	Now func() time.Time
}

// item is a queued request plus the monotonic sequence number that breaks
// priority ties FIFO.
type item struct {
	req core.DispatchRequest
	seq uint64
}

// requestHeap orders items by ascending priority, then submission order.
type requestHeap []item

func (h requestHeap) Len() int { return len(h) }

func (h requestHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority < h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h requestHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *requestHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *requestHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// workerQueue holds one worker's waiting list and in-flight flag. Guarded by
// the Queue mutex.
type workerQueue struct {
	worker   core.Worker
	waiting  requestHeap
	inflight bool
}

// WorkerStatus is a point-in-time snapshot of one worker's queue state.
type WorkerStatus struct {
	Locked  bool `json:"locked"`
	Waiting int  `json:"waiting"`
}

// Status is a point-in-time snapshot of the whole queue.
type Status struct {
	Workers      map[core.WorkerID]WorkerStatus `json:"workers"`
	TotalWaiting int                            `json:"total_waiting"`
	Delivered    int                            `json:"delivered"`
	Failed       int                            `json:"failed"`
}

// Queue serializes and prioritizes outbound nudges, one in-flight request
// per worker, with bounded retry.
//
// Invariants:
//   - For every worker, at most one delivery attempt is in flight at any
//     instant (per-worker mutual exclusion).
//   - Per worker, requests are served in priority order, FIFO within a
//     priority tier. Across workers there is no ordering guarantee.
//   - A waiting request can be dropped (ClearPending); an in-flight request
//     cannot, because physical injection is not cancellable once started.
//
// Public methods are safe for concurrent use.
type Queue struct {
	driver core.InjectionDriver
	cfg    Config
	retry  backoff.Policy

	logger  logging.Logger
	errSink func(error)
	now     func() time.Time

	mu        sync.Mutex
	workers   map[core.WorkerID]*workerQueue
	closed    bool
	seq       uint64
	delivered int
	failed    int

	wake chan struct{}
	wg   sync.WaitGroup
}

// New constructs a Queue for the given worker fleet. The worker set is fixed
// for the queue's lifetime; requests targeting any other worker are
// rejected.
func New(driver core.InjectionDriver, workers []core.Worker, optFns ...func(o *Options)) *Queue {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	q := &Queue{
		driver:  driver,
		cfg:     opts.Config,
		retry:   opts.Config.policy(),
		logger:  opts.Logger,
		errSink: opts.ErrorSink,
		now:     opts.Now,
		workers: make(map[core.WorkerID]*workerQueue, len(workers)),
		wake:    make(chan struct{}, 1),
	}
	if q.errSink == nil {
		q.errSink = func(err error) { q.logger.Error("dispatch terminal failure: %v", err) }
	}
	for _, w := range workers {
		q.workers[w.ID] = &workerQueue{worker: w}
	}
	return q
}

// Enqueue places a request on its target worker's waiting list. It rejects
// only when the queue is shut down (core.ErrQueueClosed) or the worker is
// unknown (*core.UnknownWorkerError); otherwise the request is always
// accepted. Enqueue never blocks on delivery.
func (q *Queue) Enqueue(req core.DispatchRequest) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return core.ErrQueueClosed
	}
	wq, ok := q.workers[req.Target]
	if !ok {
		q.mu.Unlock()
		return &core.UnknownWorkerError{Worker: req.Target}
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = q.now()
	}
	q.seq++
	heap.Push(&wq.waiting, item{req: req, seq: q.seq})
	q.mu.Unlock()

	q.logger.Debug("dispatch enqueued worker=%s kind=%s priority=%d", req.Target, req.Kind, req.Priority)
	q.signal()
	return nil
}

// Drain runs the consumer loop until ctx is cancelled. For each worker with
// at least one waiting request and no in-flight request it pops the
// highest-priority request, locks the worker and delivers in a dedicated
// goroutine, so one worker's slow injection never delays another's.
//
// Drain returns after in-flight deliveries have finished.
func (q *Queue) Drain(ctx context.Context) error {
	for {
		q.dispatchReady(ctx)
		select {
		case <-ctx.Done():
			q.wg.Wait()
			return ctx.Err()
		case <-q.wake:
		}
	}
}

// Close marks the queue as shut down. Subsequent Enqueue calls are rejected;
// waiting requests remain eligible for delivery until Drain's context ends.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// Status reports per-worker lock/waiting state plus totals, for
// observability.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Status{
		Workers:   make(map[core.WorkerID]WorkerStatus, len(q.workers)),
		Delivered: q.delivered,
		Failed:    q.failed,
	}
	for id, wq := range q.workers {
		st.Workers[id] = WorkerStatus{Locked: wq.inflight, Waiting: len(wq.waiting)}
		st.TotalWaiting += len(wq.waiting)
	}
	return st
}

// ClearPending drops all waiting (not yet in-flight) requests for the named
// workers, or for every worker when none are named. It never affects an
// in-flight request. Returns the number of dropped requests.
func (q *Queue) ClearPending(workers ...core.WorkerID) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	dropped := 0
	clear := func(wq *workerQueue) {
		dropped += len(wq.waiting)
		wq.waiting = nil
	}
	if len(workers) == 0 {
		for _, wq := range q.workers {
			clear(wq)
		}
		return dropped
	}
	for _, id := range workers {
		if wq, ok := q.workers[id]; ok {
			clear(wq)
		}
	}
	return dropped
}

// signal nudges the drain loop without blocking.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// dispatchReady pops one request for every unlocked worker with waiting
// work and starts its delivery goroutine.
func (q *Queue) dispatchReady(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	for _, wq := range q.workers {
		if wq.inflight || len(wq.waiting) == 0 {
			continue
		}
		it := heap.Pop(&wq.waiting).(item)
		wq.inflight = true
		q.wg.Add(1)
		go q.deliver(ctx, wq.worker, it.req)
	}
}

// deliver performs the bounded retry sequence for a single request while
// holding the worker's lock, then releases the lock and wakes the drain
// loop. Exactly one driver call happens per attempt.
func (q *Queue) deliver(ctx context.Context, worker core.Worker, req core.DispatchRequest) {
	defer q.wg.Done()

	var lastErr error
	attempts := 0
	success := false

	maxAttempts := q.retry.Attempts()
attempts:
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if delay := q.retry.Delay(attempt); delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				if lastErr == nil {
					lastErr = ctx.Err()
				}
				break attempts
			case <-timer.C:
			}
		}

		attempts = attempt
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if q.cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, q.cfg.AttemptTimeout)
		}
		start := q.now()
		err := q.driver.Deliver(attemptCtx, worker.Handle, req.Payload)
		cancel()

		q.logger.Debug("dispatch attempt worker=%s kind=%s attempt=%d duration=%s err=%v",
			worker.ID, req.Kind, attempt, q.now().Sub(start), err)

		if err == nil {
			success = true
			break attempts
		}
		lastErr = err
		if ctx.Err() != nil {
			break attempts
		}
	}

	q.mu.Lock()
	if wq, ok := q.workers[worker.ID]; ok {
		wq.inflight = false
	}
	if success {
		q.delivered++
	} else {
		q.failed++
	}
	q.mu.Unlock()

	if !success {
		q.errSink(&core.TerminalDispatchError{Request: req, Attempts: attempts, Err: lastErr})
	}
	q.signal()
}
