package agentfleet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentfleet/core"
	"github.com/hupe1980/agentfleet/dispatch"
	"github.com/hupe1980/agentfleet/driver"
	"github.com/hupe1980/agentfleet/monitor"
)

// recordingDriver captures delivered payloads per handle.
type recordingDriver struct {
	mu        sync.Mutex
	delivered map[string][]string
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{delivered: make(map[string][]string)}
}

func (d *recordingDriver) Deliver(ctx context.Context, handle string, payload string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered[handle] = append(d.delivered[handle], payload)
	return nil
}

func (d *recordingDriver) payloads(handle string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.delivered[handle]))
	copy(out, d.delivered[handle])
	return out
}

func stillSource(at time.Time) core.ActivitySource {
	return sourceFunc(func(core.WorkerID) (time.Time, error) { return at, nil })
}

type sourceFunc func(worker core.WorkerID) (time.Time, error)

func (f sourceFunc) LastActivity(worker core.WorkerID) (time.Time, error) { return f(worker) }

var fleetWorkers = []core.Worker{
	{ID: "w1", Handle: "pane-1"},
	{ID: "w2", Handle: "pane-2"},
}

func fastOptions(o *Options) {
	o.DispatchConfig = dispatch.Config{
		RetryBase:   time.Millisecond,
		RetryFactor: 2,
		RetryCap:    5 * time.Millisecond,
		MaxAttempts: 3,
	}
	o.MonitorConfig = monitor.Config{
		CheckInterval:  time.Hour,
		ActiveGrace:    5 * time.Minute,
		StallThreshold: 20 * time.Minute,
		RescueCooldown: 5 * time.Minute,
		RescuePriority: core.PriorityRescue,
	}
}

func startFleet(t *testing.T, drv core.InjectionDriver, optFns ...func(o *Options)) *Fleet {
	t.Helper()
	all := append([]func(o *Options){fastOptions}, optFns...)
	f, err := New(fleetWorkers, drv, stillSource(time.Now()), all...)
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))
	t.Cleanup(f.Stop)
	return f
}

func TestNewValidatesInputs(t *testing.T) {
	src := stillSource(time.Now())

	_, err := New(nil, driver.Func(func(context.Context, string, string) error { return nil }), src)
	assert.Error(t, err)

	_, err = New(fleetWorkers, nil, src)
	assert.Error(t, err)

	_, err = New(fleetWorkers, driver.Func(func(context.Context, string, string) error { return nil }), nil)
	assert.Error(t, err)
}

func TestFleetDeliversAssignmentNudge(t *testing.T) {
	drv := newRecordingDriver()
	f := startFleet(t, drv)

	task, err := f.CreateTask("wire up the billing export")
	require.NoError(t, err)
	require.NoError(t, f.Assign(task.ID, "w1"))

	require.Eventually(t, func() bool {
		return len(drv.payloads("pane-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Contains(t, drv.payloads("pane-1")[0], "wire up the billing export")
}

func TestFleetTaskLifecycle(t *testing.T) {
	drv := newRecordingDriver()
	var events []core.VerificationEvent
	var eventsMu sync.Mutex

	f := startFleet(t, drv, func(o *Options) {
		o.VerificationSink = func(ev core.VerificationEvent) {
			eventsMu.Lock()
			events = append(events, ev)
			eventsMu.Unlock()
		}
	})

	task, err := f.CreateTask("task")
	require.NoError(t, err)
	require.NoError(t, f.Assign(task.ID, "w1"))
	require.NoError(t, f.ApplyReport(core.ReportRecord{TaskID: task.ID, Reporter: "w1", ClaimedState: "in_progress"}))
	require.NoError(t, f.ApplyReport(core.ReportRecord{TaskID: task.ID, Reporter: "w1", ClaimedState: "completed", Evidence: []string{"done"}}))

	got, err := f.Task(task.ID)
	require.NoError(t, err)
	assert.Equal(t, core.TaskCompleted, got.State)

	eventsMu.Lock()
	defer eventsMu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, task.ID, events[0].TaskID)
}

func TestFleetReportFeedsActivity(t *testing.T) {
	f := startFleet(t, newRecordingDriver())

	at := time.Now().Add(-time.Minute)
	task, err := f.CreateTask("task")
	require.NoError(t, err)
	require.NoError(t, f.Assign(task.ID, "w2"))
	require.NoError(t, f.ApplyReport(core.ReportRecord{TaskID: task.ID, Reporter: "w2", ClaimedState: "in_progress", ReportedAt: at}))

	// A rejected claim still counts as reporter activity.
	err = f.ApplyReport(core.ReportRecord{TaskID: task.ID, Reporter: "w2", ClaimedState: "nonsense"})
	assert.Error(t, err)
}

func TestFleetNudgeAndClearPending(t *testing.T) {
	drv := newRecordingDriver()
	f := startFleet(t, drv)

	require.NoError(t, f.Nudge("w1", "please post a status update"))

	require.Eventually(t, func() bool {
		return len(drv.payloads("pane-1")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, f.ClearPending(), "nothing left waiting once delivered")
	assert.Equal(t, 1, f.QueueStatus().Delivered)
}

func TestFleetStopRejectsNewWork(t *testing.T) {
	f := startFleet(t, newRecordingDriver())
	f.Stop()

	err := f.Nudge("w1", "too late")
	assert.ErrorIs(t, err, core.ErrQueueClosed)
}
