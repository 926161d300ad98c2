package reconcile

import (
	"time"

	"github.com/desertthunder/collectarr/internal/shared"
)

// CollectionStatus is the per-spec outcome of a run.
type CollectionStatus string

const (
	StatusApplied CollectionStatus = "applied"
	StatusPreview CollectionStatus = "dry-run-preview"
	StatusSkipped CollectionStatus = "skipped"
	StatusFailed  CollectionStatus = "failed"
)

// CollectionReport is the structured outcome record for one collection spec.
type CollectionReport struct {
	Name           string                `json:"name"`
	Status         CollectionStatus      `json:"status"`
	Error          string                `json:"error,omitempty"`
	Resolved       int                   `json:"resolved"`
	Unresolved     []UnresolvedEntry     `json:"unresolved,omitempty"`
	MutationCounts map[MutationKind]int  `json:"mutation_counts,omitempty"`
	ApplyFailures  []string              `json:"apply_failures,omitempty"`
}

// RunReport aggregates per-collection outcomes plus the run-level summary.
type RunReport struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	DryRun      bool               `json:"dry_run"`
	Collections []CollectionReport `json:"collections"`
	Deleted     []string           `json:"deleted_collections,omitempty"`
}

// NewRunReport creates a report with a fresh run ID.
func NewRunReport(dryRun bool, now time.Time) *RunReport {
	return &RunReport{
		ID:        shared.GenerateID(),
		StartedAt: now,
		DryRun:    dryRun,
	}
}

// Failed returns how many specs failed.
func (r *RunReport) Failed() int {
	n := 0
	for _, c := range r.Collections {
		if c.Status == StatusFailed {
			n++
		}
	}
	return n
}

// Succeeded returns how many specs were applied or previewed cleanly.
func (r *RunReport) Succeeded() int {
	n := 0
	for _, c := range r.Collections {
		if c.Status == StatusApplied || c.Status == StatusPreview {
			n++
		}
	}
	return n
}

// OK reports whether every spec completed without failure. Partial success
// is distinguished from total failure by comparing Failed against the
// collection count.
func (r *RunReport) OK() bool {
	return r.Failed() == 0
}
