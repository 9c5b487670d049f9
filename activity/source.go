package activity

import (
	"time"

	"github.com/hupe1980/agentfleet/core"
)

// SourceFunc adapts an ordinary function to the core.ActivitySource
// interface.
type SourceFunc func(worker core.WorkerID) (time.Time, error)

// LastActivity calls the wrapped function.
func (f SourceFunc) LastActivity(worker core.WorkerID) (time.Time, error) {
	return f(worker)
}
