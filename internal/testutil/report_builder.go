package testutil

import (
	"time"

	"github.com/hupe1980/agentfleet/core"
)

// ReportBuilder helps construct worker reports with fluent chaining for
// tests.
// Example:
//
//	rec := NewReportBuilder("t1", "completed").Reporter("w1").Evidence("diff").Build()
type ReportBuilder struct {
	rec core.ReportRecord
}

// NewReportBuilder creates a new builder for a report claiming the given
// state on the given task.
func NewReportBuilder(taskID core.TaskID, claimed string) *ReportBuilder {
	return &ReportBuilder{rec: core.ReportRecord{
		TaskID:       taskID,
		Reporter:     "w1",
		ClaimedState: claimed,
		ReportedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}}
}

// Reporter sets the reporting worker (chainable).
func (b *ReportBuilder) Reporter(w core.WorkerID) *ReportBuilder {
	b.rec.Reporter = w
	return b
}

// Evidence appends evidence entries (chainable).
func (b *ReportBuilder) Evidence(items ...string) *ReportBuilder {
	b.rec.Evidence = append(b.rec.Evidence, items...)
	return b
}

// At sets the report timestamp (chainable).
func (b *ReportBuilder) At(t time.Time) *ReportBuilder {
	b.rec.ReportedAt = t
	return b
}

// Build returns the constructed report.
func (b *ReportBuilder) Build() core.ReportRecord { return b.rec }
