// Package query answers read-side questions against the version store:
// point-in-time text, snapshot reconstruction, cross-date diffs and
// per-article timelines.
package query

import (
	"github.com/coolbeans/consolex/pkg/store"
	"github.com/coolbeans/consolex/pkg/types"
)

// Resolver resolves temporal queries over one opened code. All methods read
// committed state only and are safe concurrently with consolidation.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a Resolver over an opened store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// AsOf returns the version of the article in force on the given date.
// types.ErrNotFound means the article did not exist or stood repealed then.
func (r *Resolver) AsOf(article string, date types.Date) (types.ArticleVersion, error) {
	return r.store.GetAsOf(article, date)
}

// Snapshot reconstructs the full code text as of the given date, keyed by
// article number. Articles out of force on that date are absent.
func (r *Resolver) Snapshot(date types.Date) map[string]string {
	return r.store.SnapshotAsOf(date)
}

// History returns the article's complete version chain, oldest first.
func (r *Resolver) History(article string) ([]types.ArticleVersion, error) {
	return r.store.History(article)
}
