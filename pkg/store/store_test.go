package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/coolbeans/consolex/pkg/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "consolex.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedTestCode(t *testing.T, s *Store) {
	t.Helper()
	err := s.Seed(types.LegalCode{
		ID: "dp-act", Title: "Data Protection Act", Jurisdiction: "XX",
		Adopted: types.MustDate("2000-01-01"),
	}, map[string]string{
		"1":   "Scope of this act.",
		"105": "T0",
	})
	if err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
}

func TestStore_SeedAndCurrent(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)

	if _, ok := s.Code(); !ok {
		t.Fatal("Expected seeded code metadata")
	}
	v := s.Current("105")
	if v == nil || v.Text != "T0" {
		t.Fatalf("Expected current text T0, got %+v", v)
	}
	if !v.EffectiveFrom.Equal(types.MustDate("2000-01-01")) {
		t.Errorf("Seed versions must be effective from adoption, got %s", v.EffectiveFrom)
	}
	if err := s.Seed(types.LegalCode{ID: "dp-act"}, nil); err == nil {
		t.Error("Expected second Seed to fail")
	}
}

func applyReplace(t *testing.T, s *Store, article, text, actID string, effective types.Date) {
	t.Helper()
	tx := s.BeginRun()
	if err := tx.Terminate(article, effective); err != nil {
		tx.Rollback()
		t.Fatalf("Terminate failed: %v", err)
	}
	err := tx.Append(types.ArticleVersion{
		Code: "dp-act", Article: article, Text: text, EffectiveFrom: effective, ActID: actID,
	})
	if err != nil {
		tx.Rollback()
		t.Fatalf("Append failed: %v", err)
	}
	if err := tx.Commit(types.ConsolidationRun{
		ID: "run-" + actID, Code: "dp-act", ActID: actID,
		Timestamp: time.Now(), Status: types.RunApplied,
	}, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestStore_ReplaceAndGetAsOf(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)

	applyReplace(t, s, "105", "T1", "act-1", types.MustDate("2010-06-01"))
	applyReplace(t, s, "105", "T2", "act-2", types.MustDate("2015-03-01"))

	tests := []struct {
		date string
		want string
	}{
		{"2000-01-01", "T0"},
		{"2010-05-31", "T0"},
		{"2010-06-01", "T1"}, // effective date itself is in force
		{"2015-02-28", "T1"},
		{"2015-03-01", "T2"},
		{"2030-01-01", "T2"},
	}
	for _, tt := range tests {
		v, err := s.GetAsOf("105", types.MustDate(tt.date))
		if err != nil {
			t.Fatalf("GetAsOf(%s) failed: %v", tt.date, err)
		}
		if v.Text != tt.want {
			t.Errorf("As of %s: expected %q, got %q", tt.date, tt.want, v.Text)
		}
	}

	if _, err := s.GetAsOf("105", types.MustDate("1999-12-31")); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound before adoption, got %v", err)
	}
}

func TestStore_RepealLeavesGap(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)

	tx := s.BeginRun()
	if err := tx.Terminate("105", types.MustDate("2012-01-01")); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if err := tx.Commit(types.ConsolidationRun{
		ID: "run-repeal", Code: "dp-act", ActID: "act-repeal",
		Timestamp: time.Now(), Status: types.RunApplied,
	}, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if s.Current("105") != nil {
		t.Error("Repealed article must have no current version")
	}
	if _, err := s.GetAsOf("105", types.MustDate("2012-01-01")); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Repeal date itself is out of force, got %v", err)
	}
	if v, err := s.GetAsOf("105", types.MustDate("2011-12-31")); err != nil || v.Text != "T0" {
		t.Errorf("Day before repeal should resolve, got %q, %v", v.Text, err)
	}

	// Reinstatement after the gap.
	tx = s.BeginRun()
	err := tx.Append(types.ArticleVersion{
		Code: "dp-act", Article: "105", Text: "T-new",
		EffectiveFrom: types.MustDate("2014-01-01"), ActID: "act-back",
	})
	if err != nil {
		t.Fatalf("Append after gap failed: %v", err)
	}
	if err := tx.Commit(types.ConsolidationRun{
		ID: "run-back", Code: "dp-act", ActID: "act-back",
		Timestamp: time.Now(), Status: types.RunApplied,
	}, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	if _, err := s.GetAsOf("105", types.MustDate("2013-06-01")); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Inside the gap must be not found, got %v", err)
	}
	if v, _ := s.GetAsOf("105", types.MustDate("2014-01-01")); v.Text != "T-new" {
		t.Errorf("Reinstated text missing, got %q", v.Text)
	}
}

func TestTx_ChronologyViolations(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)
	applyReplace(t, s, "105", "T1", "act-1", types.MustDate("2010-06-01"))

	// Earlier than the last version.
	tx := s.BeginRun()
	err := tx.Terminate("105", types.MustDate("2005-01-01"))
	var chrono *types.ChronologyError
	if !errors.As(err, &chrono) {
		t.Fatalf("Expected ChronologyError, got %v", err)
	}
	tx.Rollback()

	// Same effective date as a committed version.
	tx = s.BeginRun()
	if err := tx.Terminate("105", types.MustDate("2010-06-01")); !errors.As(err, &chrono) {
		t.Fatalf("Expected ChronologyError for same-date terminate of committed version, got %v", err)
	}
	tx.Rollback()

	// Append without terminating the open version first.
	tx = s.BeginRun()
	err = tx.Append(types.ArticleVersion{
		Code: "dp-act", Article: "105", Text: "x", EffectiveFrom: types.MustDate("2020-01-01"),
	})
	if err == nil {
		t.Fatal("Expected error appending over an open version")
	}
	tx.Rollback()
}

func TestTx_SameRunInsertThenAmend(t *testing.T) {
	// One act inserts an article and amends it in a later change; the
	// intermediate same-date version collapses so the chain stays strictly
	// increasing.
	s := openTestStore(t)
	seedTestCode(t, s)
	effective := types.MustDate("2018-05-01")

	tx := s.BeginRun()
	if err := tx.Append(types.ArticleVersion{
		Code: "dp-act", Article: "44", Text: "v-first", EffectiveFrom: effective, ActID: "act-x",
	}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := tx.Terminate("44", effective); err != nil {
		t.Fatalf("Same-run terminate failed: %v", err)
	}
	if err := tx.Append(types.ArticleVersion{
		Code: "dp-act", Article: "44", Text: "v-amended", EffectiveFrom: effective, ActID: "act-x",
	}); err != nil {
		t.Fatalf("Same-run re-append failed: %v", err)
	}
	if err := tx.Commit(types.ConsolidationRun{
		ID: "run-x", Code: "dp-act", ActID: "act-x",
		Timestamp: time.Now(), Status: types.RunApplied,
	}, nil); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	history, err := s.History("44")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Text != "v-amended" {
		t.Fatalf("Expected single collapsed version, got %+v", history)
	}
	if err := s.Verify(); err != nil {
		t.Errorf("Verify failed after collapse: %v", err)
	}
}

func TestTx_RollbackDiscardsStagedState(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)

	tx := s.BeginRun()
	if err := tx.Terminate("105", types.MustDate("2010-06-01")); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	tx.Rollback()

	v := s.Current("105")
	if v == nil || !v.Open() {
		t.Error("Rollback must leave the committed open version intact")
	}
}

func TestStore_SnapshotAsOf(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)
	applyReplace(t, s, "105", "T1", "act-1", types.MustDate("2010-06-01"))

	snap := s.SnapshotAsOf(types.MustDate("2005-01-01"))
	if snap["105"] != "T0" || snap["1"] != "Scope of this act." {
		t.Errorf("Unexpected 2005 snapshot: %+v", snap)
	}
	snap = s.SnapshotAsOf(types.MustDate("2011-01-01"))
	if snap["105"] != "T1" {
		t.Errorf("Expected T1 in 2011 snapshot, got %q", snap["105"])
	}
}

func TestStore_ReopenReplaysLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "consolex.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	seedTestCode(t, s)
	applyReplace(t, s, "105", "T1", "act-1", types.MustDate("2010-06-01"))
	if err := s.RecordRun(types.ConsolidationRun{
		ID: "run-dup", Code: "dp-act", ActID: "act-1",
		Timestamp: time.Now(), Status: types.RunDuplicate, DuplicateOf: "run-act-1",
	}, nil); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer func() { _ = s.Close() }()

	code, ok := s.Code()
	if !ok || code.ID != "dp-act" {
		t.Fatalf("Code metadata lost across reopen: %+v", code)
	}
	v, err := s.GetAsOf("105", types.MustDate("2012-01-01"))
	if err != nil || v.Text != "T1" {
		t.Errorf("Replayed chain wrong: %q, %v", v.Text, err)
	}
	history, err := s.History("105")
	if err != nil || len(history) != 2 {
		t.Fatalf("Expected 2 replayed versions, got %d, %v", len(history), err)
	}
	if history[0].Open() {
		t.Error("Terminate event not replayed onto first version")
	}
	if got := len(s.RunsForAct("act-1")); got != 2 {
		t.Errorf("Expected 2 runs for act-1 after reopen, got %d", got)
	}
	if err := s.Verify(); err != nil {
		t.Errorf("Verify failed after replay: %v", err)
	}
}

func TestStore_ReviewQueue(t *testing.T) {
	s := openTestStore(t)
	seedTestCode(t, s)

	item := types.ReviewItem{
		Code: "dp-act", ActID: "act-9", RunID: "run-9",
		Kind: types.ReviewConflict, Detail: "article 300 does not exist",
		Change:    &types.ArticleChange{Kind: types.ChangeReplaceText, Article: "300", Text: "x", ActID: "act-9"},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.RecordRun(types.ConsolidationRun{
		ID: "run-9", Code: "dp-act", ActID: "act-9",
		Timestamp: time.Now(), Status: types.RunPartiallyApplied,
	}, []types.ReviewItem{item}); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	items, err := s.ListReview(false)
	if err != nil {
		t.Fatalf("ListReview failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 review item, got %d", len(items))
	}
	got := items[0]
	if got.Kind != types.ReviewConflict || got.Change == nil || got.Change.Article != "300" {
		t.Errorf("Review item lost detail: %+v", got)
	}

	if err := s.ResolveReview(got.ID); err != nil {
		t.Fatalf("ResolveReview failed: %v", err)
	}
	items, err = s.ListReview(false)
	if err != nil {
		t.Fatalf("ListReview failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Resolved item still listed: %+v", items)
	}
	if err := s.ResolveReview(got.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound resolving twice, got %v", err)
	}
}

func TestVerifyChains_Corruption(t *testing.T) {
	until := types.MustDate("2010-01-01")
	tests := []struct {
		name  string
		chain []types.ArticleVersion
	}{
		{
			name: "overlapping intervals",
			chain: []types.ArticleVersion{
				{Article: "5", EffectiveFrom: types.MustDate("2000-01-01"), EffectiveUntil: &until},
				{Article: "5", EffectiveFrom: types.MustDate("2009-01-01")},
			},
		},
		{
			name: "open version followed by another",
			chain: []types.ArticleVersion{
				{Article: "5", EffectiveFrom: types.MustDate("2000-01-01")},
				{Article: "5", EffectiveFrom: types.MustDate("2012-01-01")},
			},
		},
		{
			name: "inverted interval",
			chain: []types.ArticleVersion{
				{Article: "5", EffectiveFrom: types.MustDate("2012-01-01"), EffectiveUntil: &until},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyChains("dp-act", map[string][]types.ArticleVersion{"5": tt.chain})
			var corrupt *types.CorruptionError
			if !errors.As(err, &corrupt) {
				t.Errorf("Expected CorruptionError, got %v", err)
			}
		})
	}
}
