package core

// WorkerID uniquely identifies a worker within the fleet.
type WorkerID string

// Worker describes an independently operating worker the fleet coordinates.
// Workers are created at configuration time and are immutable for the
// process lifetime.
//
// Handle is the opaque address used by the InjectionDriver to reach the
// worker's interactive session (a tmux pane target, a socket path, ...).
// The coordination core never interprets it.
type Worker struct {
	ID     WorkerID `json:"id"`
	Handle string   `json:"handle"`
}
