// Package store provides persistence backends for task records and the
// monitor's activity map: volatile in-memory stores for tests and demos, an
// atomic JSON file store for the activity map, and a SQLite-backed task
// store for durable deployments.
package store
