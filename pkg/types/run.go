package types

import "time"

// RunStatus is the overall outcome of one consolidation attempt.
type RunStatus string

const (
	// RunApplied means every change of the act was applied.
	RunApplied RunStatus = "applied"

	// RunPartiallyApplied means at least one change conflicted and was
	// queued for review while independent changes were applied.
	RunPartiallyApplied RunStatus = "partially_applied"

	// RunFailed means nothing was applied (parse failure).
	RunFailed RunStatus = "failed"

	// RunDuplicate means the act had already been processed; the run is a
	// success no-op referencing the original run.
	RunDuplicate RunStatus = "duplicate"
)

// OutcomeStatus is the per-change result within a run.
type OutcomeStatus string

const (
	// OutcomeApplied means the change produced a persisted version.
	OutcomeApplied OutcomeStatus = "applied"

	// OutcomeConflict means the change targeted a missing or occupied
	// article and was queued for review.
	OutcomeConflict OutcomeStatus = "conflict"

	// OutcomeOutOfOrder means a later-effective version already existed
	// for the target article; the change was queued for resequencing.
	OutcomeOutOfOrder OutcomeStatus = "out_of_order"
)

// ChangeOutcome records the result of applying one ArticleChange.
type ChangeOutcome struct {
	// Index is the position of the change within the act.
	Index int `json:"index"`

	// Article is the target article number.
	Article string `json:"article"`

	// Kind is the change kind.
	Kind ChangeKind `json:"kind"`

	// Status is the per-change result.
	Status OutcomeStatus `json:"status"`

	// Detail carries the conflict or ordering diagnostic, if any.
	Detail string `json:"detail,omitempty"`
}

// ConsolidationRun is the append-only audit record of one attempt to apply an
// act. Runs are never mutated after creation.
type ConsolidationRun struct {
	// ID is the unique run identifier.
	ID string `json:"id"`

	// Code is the LegalCode the run applied to.
	Code string `json:"code"`

	// ActID is the amendment act processed.
	ActID string `json:"act_id"`

	// Timestamp is when the run was recorded.
	Timestamp time.Time `json:"timestamp"`

	// Status is the overall outcome.
	Status RunStatus `json:"status"`

	// Outcomes lists per-change results in act order. Empty for failed
	// and duplicate runs.
	Outcomes []ChangeOutcome `json:"outcomes,omitempty"`

	// Error carries the parse failure reason for failed runs.
	Error string `json:"error,omitempty"`

	// DuplicateOf references the original run for duplicate runs.
	DuplicateOf string `json:"duplicate_of,omitempty"`

	// ResubmissionOf references the run whose review item this run
	// resolves, for corrected changes re-entering the pipeline.
	ResubmissionOf string `json:"resubmission_of,omitempty"`
}

// ReviewKind classifies an item on the manual-review feed.
type ReviewKind string

const (
	// ReviewParseFailure flags an act whose text contained unrecognized
	// instruction fragments.
	ReviewParseFailure ReviewKind = "parse_failure"

	// ReviewConflict flags a change that targeted a missing or occupied
	// article.
	ReviewConflict ReviewKind = "conflict"

	// ReviewOutOfOrder flags a change rejected by the chronology guard.
	ReviewOutOfOrder ReviewKind = "out_of_order"
)

// ReviewItem is one unresolved entry on the manual-review feed. Resolved
// items re-enter the pipeline as corrected changes referencing RunID.
type ReviewItem struct {
	// ID is the queue entry identifier.
	ID int64 `json:"id"`

	// Code is the affected LegalCode.
	Code string `json:"code"`

	// ActID is the act that produced the item.
	ActID string `json:"act_id"`

	// RunID is the consolidation run that produced the item.
	RunID string `json:"run_id"`

	// Kind classifies the failure.
	Kind ReviewKind `json:"kind"`

	// Change is the rejected change, when the item concerns a single
	// change rather than a whole act.
	Change *ArticleChange `json:"change,omitempty"`

	// Detail is the human-readable diagnostic.
	Detail string `json:"detail"`

	// CreatedAt is when the item was queued.
	CreatedAt time.Time `json:"created_at"`

	// Resolved marks items already resubmitted or dismissed.
	Resolved bool `json:"resolved"`
}
