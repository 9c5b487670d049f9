package driver

import (
	"context"
)

// Func adapts an ordinary function to the core.InjectionDriver interface.
type Func func(ctx context.Context, handle string, payload string) error

// Deliver calls the wrapped function.
func (f Func) Deliver(ctx context.Context, handle string, payload string) error {
	return f(ctx, handle, payload)
}
