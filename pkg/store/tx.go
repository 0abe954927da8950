package store

import (
	"fmt"

	"github.com/coolbeans/consolex/pkg/types"
)

// Tx stages every version effect of one consolidation run. Nothing a Tx does
// is observable to readers until Commit durably writes the whole run — the
// version events, the run record and any review items — in one SQLite
// transaction. Rollback discards the staged state untouched, so cancelling an
// in-flight run leaves prior state intact.
//
// BeginRun takes the per-code writer lock; Commit and Rollback release it.
// Chronology and append-only invariants are unsafe under concurrent writers,
// so there is exactly one live Tx per store.
type Tx struct {
	s       *Store
	staged  map[string][]types.ArticleVersion
	baseLen map[string]int
	touched []string
	done    bool
}

// BeginRun starts the exclusive write transaction for one run.
func (s *Store) BeginRun() *Tx {
	s.writer.Lock()
	return &Tx{
		s:       s,
		staged:  make(map[string][]types.ArticleVersion),
		baseLen: make(map[string]int),
	}
}

// chain returns the staged view of an article's chain.
func (tx *Tx) chain(article string) []types.ArticleVersion {
	if c, ok := tx.staged[article]; ok {
		return c
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	return tx.s.chains[article]
}

// touch copies an article's committed chain into the staged set.
func (tx *Tx) touch(article string) []types.ArticleVersion {
	if c, ok := tx.staged[article]; ok {
		return c
	}
	tx.s.mu.RLock()
	committed := tx.s.chains[article]
	c := make([]types.ArticleVersion, len(committed))
	copy(c, committed)
	tx.s.mu.RUnlock()

	tx.staged[article] = c
	tx.baseLen[article] = len(c)
	tx.touched = append(tx.touched, article)
	return c
}

// Current returns the open version of the article in the staged view, or
// nil. Satisfies the patch applier's lookup interface.
func (tx *Tx) Current(article string) *types.ArticleVersion {
	return currentOf(tx.chain(article))
}

// LatestEffectiveFrom returns the effective_from of the newest version in
// the staged view, for the engine's chronology guard.
func (tx *Tx) LatestEffectiveFrom(article string) (types.Date, bool) {
	c := tx.chain(article)
	if len(c) == 0 {
		return types.Date{}, false
	}
	return c[len(c)-1].EffectiveFrom, true
}

// CheckAppend reports whether a version effective from could be appended to
// the article's chain in the staged view, without staging anything.
func (tx *Tx) CheckAppend(article string, from types.Date) error {
	return tx.checkAppend(tx.chain(article), article, from)
}

func (tx *Tx) checkAppend(c []types.ArticleVersion, article string, from types.Date) error {
	if len(c) == 0 {
		return nil
	}
	last := c[len(c)-1]
	switch {
	case last.Open():
		return fmt.Errorf("article %s: previous version still open", article)
	case from.Equal(last.EffectiveFrom):
		if len(c) <= tx.baseLen[article] || !last.EffectiveFrom.Equal(*last.EffectiveUntil) {
			return &types.ChronologyError{Article: article, Effective: from, Last: last.EffectiveFrom}
		}
		return nil
	case from.Before(last.EffectiveFrom):
		return &types.ChronologyError{Article: article, Effective: from, Last: last.EffectiveFrom}
	case from.Before(*last.EffectiveUntil):
		return &types.ChronologyError{Article: article, Effective: from, Last: last.EffectiveFrom}
	}
	return nil
}

// Append stages a new version at the end of the article's chain. The
// effective_from must be strictly greater than the last stored version's;
// the sole exception is superseding a version staged earlier in this same
// run whose interval collapsed to empty (the same article touched twice
// within one act).
func (tx *Tx) Append(v types.ArticleVersion) error {
	c := tx.touch(v.Article)
	if err := tx.checkAppend(c, v.Article, v.EffectiveFrom); err != nil {
		return err
	}

	if len(c) > 0 && v.EffectiveFrom.Equal(c[len(c)-1].EffectiveFrom) {
		// Collapse the empty intermediate staged this run.
		tx.staged[v.Article] = append(c[:len(c)-1], v)
		return nil
	}

	tx.staged[v.Article] = append(c, v)
	return nil
}

// Terminate stages the closing of the article's open version at until.
func (tx *Tx) Terminate(article string, until types.Date) error {
	c := tx.touch(article)
	if len(c) == 0 {
		return fmt.Errorf("article %s: no versions to terminate", article)
	}
	last := &c[len(c)-1]
	if !last.Open() {
		return fmt.Errorf("article %s: current version already terminated", article)
	}
	if until.Before(last.EffectiveFrom) {
		return &types.ChronologyError{Article: article, Effective: until, Last: last.EffectiveFrom}
	}
	if until.Equal(last.EffectiveFrom) && len(c) <= tx.baseLen[article] {
		// Collapsing a committed version to an empty interval would
		// require rewriting the durable log.
		return &types.ChronologyError{Article: article, Effective: until, Last: last.EffectiveFrom}
	}
	u := until
	last.EffectiveUntil = &u
	tx.staged[article] = c
	return nil
}

// Commit durably writes the run and its staged effects, then publishes them
// to readers. The write completes before the writer lock releases, so a
// crash mid-run never leaves state half-applied with the lock abandoned.
func (tx *Tx) Commit(run types.ConsolidationRun, review []types.ReviewItem) error {
	if tx.done {
		return fmt.Errorf("transaction already finished")
	}
	tx.done = true
	defer tx.s.writer.Unlock()

	var events []logEvent
	for _, article := range tx.touched {
		c := tx.staged[article]
		base := tx.baseLen[article]

		// A version inserted and repealed within the same run collapses
		// to an empty interval; it was never in force and is dropped.
		for len(c) > base {
			last := c[len(c)-1]
			if last.EffectiveUntil == nil || last.EffectiveFrom.Before(*last.EffectiveUntil) {
				break
			}
			c = c[:len(c)-1]
		}
		tx.staged[article] = c

		if base > 0 {
			tx.s.mu.RLock()
			committedLast := tx.s.chains[article][base-1]
			tx.s.mu.RUnlock()
			if committedLast.Open() && !c[base-1].Open() {
				events = append(events, logEvent{
					kind: eventTerminate, article: article, until: *c[base-1].EffectiveUntil,
				})
			}
		}
		for _, v := range c[base:] {
			events = append(events, logEvent{kind: eventAppend, version: v})
		}
	}

	if err := tx.s.db.commit(nil, events, &run, review); err != nil {
		return err
	}

	tx.s.mu.Lock()
	for _, article := range tx.touched {
		if c := tx.staged[article]; len(c) > 0 {
			tx.s.chains[article] = c
		}
	}
	tx.s.addRunLocked(run)
	tx.s.mu.Unlock()
	return nil
}

// Rollback discards the staged state and releases the writer lock.
func (tx *Tx) Rollback() {
	if tx.done {
		return
	}
	tx.done = true
	tx.s.writer.Unlock()
}
