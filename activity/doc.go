// Package activity provides implementations of the core.ActivitySource
// port: adapters that turn side effects workers produce into the "last
// observed activity" timestamps the monitor classifies on.
package activity
