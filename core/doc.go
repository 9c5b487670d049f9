// Package core provides the foundational domain types, interfaces and error
// taxonomy used by AgentFleet. It defines the core abstractions for:
//
//   - Workers (independent long-running session executors coordinated, not
//     controlled, by the fleet)
//   - Dispatch requests (prioritized one-way nudges delivered to a worker's
//     interactive session)
//   - Tasks (finite-state records driven by structured worker reports)
//   - Activity state (inferred per-worker liveness used for stall rescue)
//   - Pluggable ports for injection, activity observation and persistence
//
// The package intentionally keeps implementation concerns (queue mechanics,
// monitor scheduling, concrete stores) out of scope, exposing small
// interfaces so the coordination engine can be exercised against fakes and
// extended with custom backends.
package core
