// Package driver provides implementations of the core.InjectionDriver port:
// the transport-specific mechanics of placing a nudge payload in front of a
// live worker session.
package driver
