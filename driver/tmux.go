package driver

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// TmuxOptions configures a TmuxDriver using the functional options pattern.
type TmuxOptions struct {
	// BinPath is the tmux binary to invoke. Defaults to "tmux" on PATH.
	BinPath string

	// EnterDelay is the pause between sending the payload text and sending
	// the Enter key. Interactive programs need a moment to ingest pasted
	// text before the submit keystroke.
	EnterDelay time.Duration

	// Exec runs one tmux invocation. Defaults to os/exec; tests substitute
	// a recorder.
	Exec func(ctx context.Context, name string, args ...string) error
}

// TmuxDriver is a core.InjectionDriver that types a payload into a tmux
// pane. The worker handle is the tmux target pane (session:window.pane).
//
// The payload is sent literally, then Enter is sent as a separate keystroke
// after a short delay.
type TmuxDriver struct {
	binPath    string
	enterDelay time.Duration
	exec       func(ctx context.Context, name string, args ...string) error
}

// NewTmuxDriver constructs a driver shelling out to tmux send-keys.
func NewTmuxDriver(optFns ...func(o *TmuxOptions)) *TmuxDriver {
	opts := TmuxOptions{
		BinPath:    "tmux",
		EnterDelay: 200 * time.Millisecond,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Exec == nil {
		opts.Exec = func(ctx context.Context, name string, args ...string) error {
			out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
			if err != nil {
				return fmt.Errorf("%s %v: %w: %s", name, args, err, out)
			}
			return nil
		}
	}

	return &TmuxDriver{
		binPath:    opts.BinPath,
		enterDelay: opts.EnterDelay,
		exec:       opts.Exec,
	}
}

// Deliver implements core.InjectionDriver.
func (d *TmuxDriver) Deliver(ctx context.Context, handle string, payload string) error {
	// -l sends the payload literally so tmux does not interpret key names
	// inside the text.
	if err := d.exec(ctx, d.binPath, "send-keys", "-t", handle, "-l", payload); err != nil {
		return fmt.Errorf("send payload to pane %s: %w", handle, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d.enterDelay):
	}

	if err := d.exec(ctx, d.binPath, "send-keys", "-t", handle, "Enter"); err != nil {
		return fmt.Errorf("send enter to pane %s: %w", handle, err)
	}
	return nil
}
