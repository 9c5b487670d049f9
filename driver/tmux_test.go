package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	name string
	args []string
}

func newRecordingDriver(fail error) (*TmuxDriver, *[]execCall) {
	var calls []execCall
	d := NewTmuxDriver(func(o *TmuxOptions) {
		o.EnterDelay = time.Millisecond
		o.Exec = func(ctx context.Context, name string, args ...string) error {
			calls = append(calls, execCall{name: name, args: args})
			return fail
		}
	})
	return d, &calls
}

func TestTmuxDriverSendsPayloadThenEnter(t *testing.T) {
	d, calls := newRecordingDriver(nil)

	require.NoError(t, d.Deliver(context.Background(), "fleet:0.1", "status report please"))

	require.Len(t, *calls, 2)
	assert.Equal(t, []string{"send-keys", "-t", "fleet:0.1", "-l", "status report please"}, (*calls)[0].args)
	assert.Equal(t, []string{"send-keys", "-t", "fleet:0.1", "Enter"}, (*calls)[1].args)
}

func TestTmuxDriverPropagatesExecFailure(t *testing.T) {
	wantErr := errors.New("no such pane")
	d, calls := newRecordingDriver(wantErr)

	err := d.Deliver(context.Background(), "fleet:0.1", "hello")

	assert.ErrorIs(t, err, wantErr)
	assert.Len(t, *calls, 1, "enter must not be sent after a failed payload")
}

func TestTmuxDriverHonorsContextBetweenKeystrokes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	d := NewTmuxDriver(func(o *TmuxOptions) {
		o.EnterDelay = time.Second
		o.Exec = func(ctx context.Context, name string, args ...string) error {
			calls++
			cancel()
			return nil
		}
	})

	err := d.Deliver(ctx, "fleet:0.1", "hello")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFuncAdapter(t *testing.T) {
	var gotHandle, gotPayload string
	d := Func(func(ctx context.Context, handle string, payload string) error {
		gotHandle, gotPayload = handle, payload
		return nil
	})

	require.NoError(t, d.Deliver(context.Background(), "pane-1", "nudge"))
	assert.Equal(t, "pane-1", gotHandle)
	assert.Equal(t, "nudge", gotPayload)
}
