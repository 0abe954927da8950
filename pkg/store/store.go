// Package store provides the durable, append-only version store for a legal
// code: per-article version chains, consolidation-run audit records, the
// manual-review queue, and temporal lookups.
//
// Per-article chains are index-addressable slices ordered by effective_from,
// so point-in-time lookups binary-search instead of walking pointers. The
// SQLite version log and run log are the durable source of truth; the
// in-memory index is rebuilt by replaying them in order on open.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/coolbeans/consolex/pkg/types"
)

// Store is the version store for one opened legal code. Reads are safe
// concurrently with a write in progress and observe only committed state;
// writes are serialized by the per-code writer lock held from BeginRun to
// Commit or Rollback.
type Store struct {
	mu sync.RWMutex

	// chains holds the committed per-article version chains, each sorted
	// by EffectiveFrom with non-overlapping intervals.
	chains map[string][]types.ArticleVersion

	// runs holds committed consolidation runs in record order.
	runs []types.ConsolidationRun

	// runsByAct indexes runs by act id for deduplication.
	runsByAct map[string][]int

	code   *types.LegalCode
	db     *db
	writer sync.Mutex
}

// Code returns the seeded legal code, or false if the store is unseeded.
func (s *Store) Code() (types.LegalCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.code == nil {
		return types.LegalCode{}, false
	}
	return *s.code, true
}

// Current returns a copy of the open version of the article, or nil.
func (s *Store) Current(article string) *types.ArticleVersion {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return currentOf(s.chains[article])
}

func currentOf(chain []types.ArticleVersion) *types.ArticleVersion {
	if len(chain) == 0 {
		return nil
	}
	last := chain[len(chain)-1]
	if !last.Open() {
		return nil
	}
	return &last
}

// GetAsOf returns the version of the article whose interval contains date.
// types.ErrNotFound is a normal outcome: the article did not yet exist on
// that date, or stood repealed.
func (s *Store) GetAsOf(article string, date types.Date) (types.ArticleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := versionAt(s.chains[article], date)
	if !ok {
		return types.ArticleVersion{}, fmt.Errorf("article %s as of %s: %w", article, date, types.ErrNotFound)
	}
	return v, nil
}

// versionAt binary-searches a chain for the version in force on date.
func versionAt(chain []types.ArticleVersion, date types.Date) (types.ArticleVersion, bool) {
	idx := sort.Search(len(chain), func(i int) bool {
		return chain[i].EffectiveFrom.After(date)
	}) - 1
	if idx < 0 {
		return types.ArticleVersion{}, false
	}
	if !chain[idx].InForceAt(date) {
		return types.ArticleVersion{}, false
	}
	return chain[idx], true
}

// History returns the article's full version chain in chronological order.
func (s *Store) History(article string) ([]types.ArticleVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain, ok := s.chains[article]
	if !ok {
		return nil, fmt.Errorf("article %s: %w", article, types.ErrNotFound)
	}
	out := make([]types.ArticleVersion, len(chain))
	copy(out, chain)
	return out, nil
}

// Articles returns all article numbers ever versioned, sorted.
func (s *Store) Articles() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nums := make([]string, 0, len(s.chains))
	for n := range s.chains {
		nums = append(nums, n)
	}
	sort.Strings(nums)
	return nums
}

// SnapshotAsOf reconstructs the entire code as of date in one pass over the
// chains: one binary search per article, never one query per article against
// the durable log.
func (s *Store) SnapshotAsOf(date types.Date) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]string)
	for article, chain := range s.chains {
		if v, ok := versionAt(chain, date); ok {
			snapshot[article] = v.Text
		}
	}
	return snapshot
}

// Runs returns all consolidation runs in record order.
func (s *Store) Runs() []types.ConsolidationRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.ConsolidationRun, len(s.runs))
	copy(out, s.runs)
	return out
}

// RunsForAct returns the runs recorded for an act id, oldest first.
func (s *Store) RunsForAct(actID string) []types.ConsolidationRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.ConsolidationRun
	for _, idx := range s.runsByAct[actID] {
		out = append(out, s.runs[idx])
	}
	return out
}

// RecordRun appends a run that produced no version effects (failed or
// duplicate) to the durable run log.
func (s *Store) RecordRun(run types.ConsolidationRun, review []types.ReviewItem) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	if err := s.db.commit(nil, nil, &run, review); err != nil {
		return err
	}

	s.mu.Lock()
	s.addRunLocked(run)
	s.mu.Unlock()
	return nil
}

func (s *Store) addRunLocked(run types.ConsolidationRun) {
	s.runsByAct[run.ActID] = append(s.runsByAct[run.ActID], len(s.runs))
	s.runs = append(s.runs, run)
}

// Seed loads the base code: metadata plus the initial article set, every
// version effective from the adoption date. Fails if the store was already
// seeded.
func (s *Store) Seed(code types.LegalCode, articles map[string]string) error {
	s.writer.Lock()
	defer s.writer.Unlock()

	s.mu.RLock()
	seeded := s.code != nil
	s.mu.RUnlock()
	if seeded {
		return fmt.Errorf("code %s already seeded", code.ID)
	}

	nums := make([]string, 0, len(articles))
	for n := range articles {
		nums = append(nums, n)
	}
	sort.Strings(nums)

	chains := make(map[string][]types.ArticleVersion, len(articles))
	var events []logEvent
	for _, n := range nums {
		v := types.ArticleVersion{
			Code:          code.ID,
			Article:       n,
			Text:          articles[n],
			EffectiveFrom: code.Adopted,
		}
		chains[n] = []types.ArticleVersion{v}
		events = append(events, logEvent{kind: eventAppend, version: v})
	}

	if err := s.db.commit(&code, events, nil, nil); err != nil {
		return err
	}

	s.mu.Lock()
	s.code = &code
	s.chains = chains
	s.mu.Unlock()
	return nil
}

// Verify scans every chain for interval corruption: out-of-order, empty or
// overlapping intervals, or an open version followed by another version.
// Any finding is fatal for the code's consolidation.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return verifyChains(s.codeID(), s.chains)
}

func (s *Store) codeID() string {
	if s.code == nil {
		return ""
	}
	return s.code.ID
}

func verifyChains(code string, chains map[string][]types.ArticleVersion) error {
	for article, chain := range chains {
		for i, v := range chain {
			if v.EffectiveUntil != nil && !v.EffectiveFrom.Before(*v.EffectiveUntil) {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: fmt.Sprintf("version %d has empty or inverted interval [%s, %s)", i, v.EffectiveFrom, *v.EffectiveUntil)}
			}
			if i == 0 {
				continue
			}
			prev := chain[i-1]
			if prev.Open() {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: fmt.Sprintf("open version %d is followed by version %d", i-1, i)}
			}
			if !prev.EffectiveFrom.Before(v.EffectiveFrom) {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: fmt.Sprintf("versions %d and %d not in strictly increasing order", i-1, i)}
			}
			if v.EffectiveFrom.Before(*prev.EffectiveUntil) {
				return &types.CorruptionError{Code: code, Article: article,
					Detail: fmt.Sprintf("versions %d and %d have overlapping intervals", i-1, i)}
			}
		}
	}
	return nil
}

// Close flushes and releases the store.
func (s *Store) Close() error {
	return s.db.close()
}
