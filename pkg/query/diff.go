package query

import (
	"encoding/json"
	"sort"

	"github.com/coolbeans/consolex/pkg/types"
)

// ChangeType represents the kind of difference for one article between two
// dates.
type ChangeType int

const (
	// ChangeAdded indicates the article is in force only on the target date.
	ChangeAdded ChangeType = iota
	// ChangeRemoved indicates the article is in force only on the base date.
	ChangeRemoved
	// ChangeModified indicates the article text differs between the dates.
	ChangeModified
	// ChangeUnchanged indicates identical text on both dates.
	ChangeUnchanged
)

// String returns the string representation of a ChangeType.
func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "ADDED"
	case ChangeRemoved:
		return "REMOVED"
	case ChangeModified:
		return "MODIFIED"
	case ChangeUnchanged:
		return "UNCHANGED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON implements json.Marshaler for ChangeType.
func (c ChangeType) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// ArticleDelta describes one article's difference between the base and
// target dates.
type ArticleDelta struct {
	// Article is the article number.
	Article string `json:"article"`

	// Type is the kind of difference.
	Type ChangeType `json:"type"`

	// BaseText is the text in force on the base date (empty for added).
	BaseText string `json:"base_text,omitempty"`

	// TargetText is the text in force on the target date (empty for removed).
	TargetText string `json:"target_text,omitempty"`

	// TargetActID references the act that produced the target version.
	TargetActID string `json:"target_act_id,omitempty"`
}

// DiffReport is the full difference of the code between two dates.
type DiffReport struct {
	// Code is the legal code identifier.
	Code string `json:"code"`

	// Base is the earlier comparison date.
	Base types.Date `json:"base"`

	// Target is the later comparison date.
	Target types.Date `json:"target"`

	// Deltas lists changed articles in article-number order. Unchanged
	// articles are omitted.
	Deltas []ArticleDelta `json:"deltas"`

	// Summary counts.
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// Diff compares the code's state between two dates. Both snapshots come from
// committed state only, so a diff taken during a consolidation run sees
// either none or all of that run's effects.
func (r *Resolver) Diff(base, target types.Date) DiffReport {
	code, _ := r.store.Code()
	report := DiffReport{Code: code.ID, Base: base, Target: target}

	articles := r.store.Articles()
	for _, article := range articles {
		baseV, baseErr := r.store.GetAsOf(article, base)
		targetV, targetErr := r.store.GetAsOf(article, target)

		switch {
		case baseErr != nil && targetErr != nil:
			continue
		case baseErr != nil:
			report.Added++
			report.Deltas = append(report.Deltas, ArticleDelta{
				Article: article, Type: ChangeAdded,
				TargetText: targetV.Text, TargetActID: targetV.ActID,
			})
		case targetErr != nil:
			report.Removed++
			report.Deltas = append(report.Deltas, ArticleDelta{
				Article: article, Type: ChangeRemoved, BaseText: baseV.Text,
			})
		case baseV.Text != targetV.Text:
			report.Modified++
			report.Deltas = append(report.Deltas, ArticleDelta{
				Article: article, Type: ChangeModified,
				BaseText: baseV.Text, TargetText: targetV.Text, TargetActID: targetV.ActID,
			})
		default:
			report.Unchanged++
		}
	}

	sort.Slice(report.Deltas, func(i, j int) bool {
		return articleLess(report.Deltas[i].Article, report.Deltas[j].Article)
	})
	return report
}
