// Package patch applies one structured article change to the current version
// of an article, producing version-store effects or a conflict.
//
// The applier is pure and stateless: it reads current state through a narrow
// lookup interface and returns the effects to persist. A conflict is returned
// with zero observable mutation.
package patch

import (
	"fmt"

	"github.com/coolbeans/consolex/pkg/types"
)

// CurrentLookup answers "what is the open version of this article", if any.
// Implemented by the version store; the applier never mutates through it.
type CurrentLookup interface {
	// Current returns the open (still in force) version of the article,
	// or nil if the article has no current version.
	Current(article string) *types.ArticleVersion
}

// EffectKind distinguishes the two version-store mutations a change can
// produce.
type EffectKind int

const (
	// EffectAppend appends a new version to an article's chain.
	EffectAppend EffectKind = iota
	// EffectTerminate closes the open version's interval.
	EffectTerminate
)

// Effect is one version-store mutation. A change yields zero or more effects
// which the engine persists together.
type Effect struct {
	Kind    EffectKind
	Article string

	// Version is the version to append, for EffectAppend.
	Version types.ArticleVersion

	// Until closes the open interval, for EffectTerminate.
	Until types.Date
}

// Applier applies article changes. Safe for concurrent use.
type Applier struct{}

// NewApplier creates an Applier.
func NewApplier() *Applier {
	return &Applier{}
}

// Apply computes the effects of one change at the given effective date.
// Either a well-formed effect list is returned, or a *types.ConflictError
// and no effects.
func (a *Applier) Apply(lookup CurrentLookup, code string, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	switch change.Kind {
	case types.ChangeReplaceText:
		return a.applyReplace(lookup, code, change, effective)
	case types.ChangeInsertArticle:
		return a.applyInsert(lookup, code, change, effective)
	case types.ChangeRepealArticle:
		return a.applyRepeal(lookup, change, effective)
	case types.ChangeRenumber:
		return a.applyRenumber(lookup, code, change, effective)
	case types.ChangeAmendSubpart:
		return a.applyAmendSubpart(lookup, code, change, effective)
	default:
		return nil, &types.ConflictError{Change: change, Reason: fmt.Sprintf("unsupported change kind %d", change.Kind)}
	}
}

func (a *Applier) applyReplace(lookup CurrentLookup, code string, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	cur := lookup.Current(change.Article)
	if cur == nil {
		return nil, &types.ConflictError{Change: change, Reason: "no current version to replace"}
	}
	return []Effect{
		{Kind: EffectTerminate, Article: change.Article, Until: effective},
		{Kind: EffectAppend, Article: change.Article, Version: types.ArticleVersion{
			Code:          code,
			Article:       change.Article,
			Text:          change.Text,
			EffectiveFrom: effective,
			ActID:         change.ActID,
		}},
	}, nil
}

func (a *Applier) applyInsert(lookup CurrentLookup, code string, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	if cur := lookup.Current(change.Article); cur != nil {
		return nil, &types.ConflictError{Change: change, Reason: "article number already has a current version"}
	}
	return []Effect{
		{Kind: EffectAppend, Article: change.Article, Version: types.ArticleVersion{
			Code:          code,
			Article:       change.Article,
			Text:          change.Text,
			EffectiveFrom: effective,
			ActID:         change.ActID,
		}},
	}, nil
}

func (a *Applier) applyRepeal(lookup CurrentLookup, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	if cur := lookup.Current(change.Article); cur == nil {
		return nil, &types.ConflictError{Change: change, Reason: "no current version to repeal"}
	}
	return []Effect{
		{Kind: EffectTerminate, Article: change.Article, Until: effective},
	}, nil
}

func (a *Applier) applyRenumber(lookup CurrentLookup, code string, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	cur := lookup.Current(change.Article)
	if cur == nil {
		return nil, &types.ConflictError{Change: change, Reason: "no current version to renumber"}
	}
	if occupied := lookup.Current(change.NewNumber); occupied != nil {
		return nil, &types.ConflictError{Change: change, Reason: fmt.Sprintf("target article %s is already occupied", change.NewNumber)}
	}
	return []Effect{
		{Kind: EffectTerminate, Article: change.Article, Until: effective},
		{Kind: EffectAppend, Article: change.NewNumber, Version: types.ArticleVersion{
			Code:          code,
			Article:       change.NewNumber,
			Text:          cur.Text,
			EffectiveFrom: effective,
			ActID:         change.ActID,
		}},
	}, nil
}

func (a *Applier) applyAmendSubpart(lookup CurrentLookup, code string, change types.ArticleChange, effective types.Date) ([]Effect, error) {
	cur := lookup.Current(change.Article)
	if cur == nil {
		return nil, &types.ConflictError{Change: change, Reason: "no current version to amend"}
	}

	var patched string
	var err error
	switch change.Op {
	case types.SubpartRestate:
		patched, err = restateSubpart(cur.Text, change.Subpart, change.Text)
	case types.SubpartInsert:
		patched, err = insertPoint(cur.Text, change.Subpart, change.Text)
	case types.SubpartSubstitute:
		patched, err = substituteWords(cur.Text, change.Subpart, change.OldWords, change.NewWords)
	default:
		err = fmt.Errorf("unsupported subpart op %d", change.Op)
	}
	if err != nil {
		return nil, &types.ConflictError{Change: change, Reason: err.Error()}
	}

	return []Effect{
		{Kind: EffectTerminate, Article: change.Article, Until: effective},
		{Kind: EffectAppend, Article: change.Article, Version: types.ArticleVersion{
			Code:          code,
			Article:       change.Article,
			Text:          patched,
			EffectiveFrom: effective,
			ActID:         change.ActID,
		}},
	}, nil
}
