// Package monitor implements the fleet's activity monitor. It polls an
// activity source on a fixed interval, classifies each worker's liveness
// (active, idle, stalled) from the age of its last observed activity, and
// submits rescue nudges to the dispatch queue under a cooldown discipline.
//
// Grace and cooldown are deliberately separate gates: the grace period and
// stall threshold are classification inputs, the rescue cooldown is a rescue
// eligibility gate applied after classification. The full activity map is
// persisted after every cycle so a restart resumes with correct cooldown
// state instead of triggering a rescue storm.
package monitor
