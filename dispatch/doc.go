// Package dispatch implements the fleet's outbound nudge queue. It accepts
// prioritized dispatch requests per worker, serializes delivery so that at
// most one injection per worker is ever in flight, and retries failed
// deliveries with bounded exponential backoff before reporting a terminal
// dispatch error to the registered error sink.
//
// The queue is the only component that calls into the (slow, possibly
// blocking) injection driver. Producers (the activity monitor, the task
// orchestrator, or external callers) only enqueue; they never wait for
// delivery.
package dispatch
