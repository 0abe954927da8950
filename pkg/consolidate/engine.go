// Package consolidate runs amendment acts against the version store: one act
// in, one durable consolidation run out.
//
// Runs are serialized per code. An act id already consolidated is a no-op
// duplicate referencing the original run; an act with unrecognized fragments
// fails whole; a recognized act applies partially, with conflicting and
// out-of-order changes queued for manual review while independent changes
// land.
package consolidate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coolbeans/consolex/pkg/amend"
	"github.com/coolbeans/consolex/pkg/metrics"
	"github.com/coolbeans/consolex/pkg/patch"
	"github.com/coolbeans/consolex/pkg/store"
	"github.com/coolbeans/consolex/pkg/types"
)

// Engine consolidates amendment acts into one opened legal code.
type Engine struct {
	mu      sync.Mutex
	store   *store.Store
	parser  *amend.Parser
	applier *patch.Applier
}

// New creates an Engine over an opened store.
func New(s *store.Store) *Engine {
	return &Engine{
		store:   s,
		parser:  amend.NewParser(),
		applier: patch.NewApplier(),
	}
}

// Parse converts raw act text into a structured act without applying it.
func (e *Engine) Parse(meta amend.ActMeta, raw string) types.AmendmentAct {
	return e.parser.Parse(meta, raw)
}

// ProcessText parses raw act text and consolidates the result.
func (e *Engine) ProcessText(meta amend.ActMeta, raw string) (types.ConsolidationRun, error) {
	return e.Consolidate(e.parser.Parse(meta, raw))
}

// Consolidate applies one amendment act and records the run. A failed or
// duplicate run is a recorded outcome, not an error; the error return is for
// storage faults only.
func (e *Engine) Consolidate(act types.AmendmentAct) (types.ConsolidationRun, error) {
	return e.consolidate(act, "")
}

// Resubmit re-enters a corrected act for an unresolved review item. The new
// run references the run that queued the item, and the item is marked
// resolved once the run is recorded.
func (e *Engine) Resubmit(itemID int64, act types.AmendmentAct) (types.ConsolidationRun, error) {
	items, err := e.store.ListReview(false)
	if err != nil {
		return types.ConsolidationRun{}, err
	}
	var item *types.ReviewItem
	for i := range items {
		if items[i].ID == itemID {
			item = &items[i]
			break
		}
	}
	if item == nil {
		return types.ConsolidationRun{}, fmt.Errorf("review item %d: %w", itemID, types.ErrNotFound)
	}

	run, err := e.consolidate(act, item.RunID)
	if err != nil {
		return run, err
	}
	if err := e.store.ResolveReview(itemID); err != nil {
		return run, err
	}
	return run, nil
}

func (e *Engine) consolidate(act types.AmendmentAct, resubmissionOf string) (types.ConsolidationRun, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	code, ok := e.store.Code()
	if !ok {
		return types.ConsolidationRun{}, fmt.Errorf("store is not seeded with a code")
	}

	run := types.ConsolidationRun{
		ID:             uuid.NewString(),
		Code:           code.ID,
		ActID:          act.ID,
		Timestamp:      time.Now().UTC(),
		ResubmissionOf: resubmissionOf,
	}

	// Any prior run for the act id makes a redelivery a no-op, failed runs
	// included: at-least-once delivery redelivers the same text, and
	// corrected acts re-enter through Resubmit instead.
	if resubmissionOf == "" {
		for _, prior := range e.store.RunsForAct(act.ID) {
			if prior.Status == types.RunDuplicate {
				continue
			}
			run.Status = types.RunDuplicate
			run.DuplicateOf = prior.ID
			if err := e.store.RecordRun(run, nil); err != nil {
				return run, err
			}
			metrics.RunsTotal.WithLabelValues(code.ID, string(run.Status)).Inc()
			return run, nil
		}
	}

	if len(act.Unrecognized) > 0 {
		perr := &types.ParseError{ActID: act.ID, Fragments: act.Unrecognized}
		run.Status = types.RunFailed
		run.Error = perr.Error()
		review := []types.ReviewItem{{
			Code: code.ID, ActID: act.ID, RunID: run.ID,
			Kind: types.ReviewParseFailure, Detail: reviewDetail(act.Unrecognized),
			CreatedAt: run.Timestamp,
		}}
		if err := e.store.RecordRun(run, review); err != nil {
			return run, err
		}
		metrics.RunsTotal.WithLabelValues(code.ID, string(run.Status)).Inc()
		metrics.ParseFailuresTotal.WithLabelValues(code.ID).Inc()
		metrics.ReviewQueuedTotal.WithLabelValues(code.ID, string(types.ReviewParseFailure)).Inc()
		return run, nil
	}

	tx := e.store.BeginRun()
	staged := make(map[string]bool)
	var review []types.ReviewItem

	for i, change := range act.Changes {
		outcome := types.ChangeOutcome{Index: i, Article: change.Article, Kind: change.Kind}

		err := e.stageChange(tx, code.ID, change, act.Effective, staged)
		switch kind := classify(err); {
		case err == nil:
			outcome.Status = types.OutcomeApplied
		case kind == "":
			tx.Rollback()
			return run, fmt.Errorf("apply change %d of act %s: %w", i, act.ID, err)
		default:
			if kind == types.ReviewConflict {
				outcome.Status = types.OutcomeConflict
			} else {
				outcome.Status = types.OutcomeOutOfOrder
			}
			outcome.Detail = err.Error()
			c := change
			review = append(review, types.ReviewItem{
				Code: code.ID, ActID: act.ID, RunID: run.ID,
				Kind: kind, Change: &c, Detail: err.Error(),
				CreatedAt: run.Timestamp,
			})
		}
		run.Outcomes = append(run.Outcomes, outcome)
	}

	if len(review) == 0 {
		run.Status = types.RunApplied
	} else {
		run.Status = types.RunPartiallyApplied
	}

	if err := tx.Commit(run, review); err != nil {
		return run, err
	}

	metrics.RunsTotal.WithLabelValues(code.ID, string(run.Status)).Inc()
	for _, o := range run.Outcomes {
		metrics.ChangeOutcomesTotal.WithLabelValues(code.ID, o.Kind.String(), string(o.Status)).Inc()
	}
	for _, item := range review {
		metrics.ReviewQueuedTotal.WithLabelValues(code.ID, string(item.Kind)).Inc()
	}
	return run, nil
}

// stageChange validates and stages the effects of one change in the run's
// transaction. On any returned error the transaction is exactly as before the
// call.
func (e *Engine) stageChange(tx *store.Tx, codeID string, change types.ArticleChange, effective types.Date, staged map[string]bool) error {
	for _, article := range targets(change) {
		last, ok := tx.LatestEffectiveFrom(article)
		if !ok {
			continue
		}
		if last.After(effective) {
			return &types.OutOfOrderError{Article: article, Effective: effective, Existing: last}
		}
		// Equal dates are legal only for versions this same run staged;
		// a second act landing on the same effective date is ambiguous.
		if last.Equal(effective) && !staged[article] {
			return &types.ChronologyError{Article: article, Effective: effective, Last: last}
		}
	}

	// The renumber target must accept the append before the source is
	// terminated, or the change would half-apply.
	if change.Kind == types.ChangeRenumber {
		if err := tx.CheckAppend(change.NewNumber, effective); err != nil {
			return err
		}
	}

	effects, err := e.applier.Apply(tx, codeID, change, effective)
	if err != nil {
		return err
	}
	for _, eff := range effects {
		switch eff.Kind {
		case patch.EffectTerminate:
			err = tx.Terminate(eff.Article, eff.Until)
		case patch.EffectAppend:
			err = tx.Append(eff.Version)
		}
		if err != nil {
			return err
		}
		staged[eff.Article] = true
	}
	return nil
}

// targets lists the articles a change touches.
func targets(change types.ArticleChange) []string {
	if change.Kind == types.ChangeRenumber && change.NewNumber != "" {
		return []string{change.Article, change.NewNumber}
	}
	return []string{change.Article}
}

// classify maps a stage error to its review kind, or "" for internal faults.
func classify(err error) types.ReviewKind {
	var conflict *types.ConflictError
	var order *types.OutOfOrderError
	var chrono *types.ChronologyError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &conflict):
		return types.ReviewConflict
	case errors.As(err, &order), errors.As(err, &chrono):
		return types.ReviewOutOfOrder
	default:
		return ""
	}
}

func reviewDetail(fragments []types.UnrecognizedFragment) string {
	if len(fragments) == 0 {
		return ""
	}
	first := fragments[0]
	if len(fragments) == 1 {
		return fmt.Sprintf("unrecognized instruction at offset %d: %s", first.Offset, first.Reason)
	}
	return fmt.Sprintf("%d unrecognized instructions, first at offset %d: %s",
		len(fragments), first.Offset, first.Reason)
}
