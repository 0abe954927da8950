package types

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a query for a date or article with no applicable
// version. It is a normal, documented outcome ("article did not yet exist" or
// "article currently repealed"), not an internal fault.
var ErrNotFound = errors.New("not found")

// ParseError reports that an act's text contained instruction fragments
// outside the recognized grammar. Nothing from the act is applied.
type ParseError struct {
	ActID     string
	Fragments []UnrecognizedFragment
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if len(e.Fragments) == 1 {
		return fmt.Sprintf("act %s: unrecognized instruction at offset %d: %s",
			e.ActID, e.Fragments[0].Offset, e.Fragments[0].Reason)
	}
	return fmt.Sprintf("act %s: %d unrecognized instructions", e.ActID, len(e.Fragments))
}

// ConflictError reports a change whose target article is missing or occupied.
// The change is rejected with zero observable mutation.
type ConflictError struct {
	Change ArticleChange
	Reason string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s article %s: %s", e.Change.Kind, e.Change.Article, e.Reason)
}

// OutOfOrderError reports a change rejected because a later-effective version
// already exists for its target article. Applying it would silently rewrite
// history, so it is queued for manual resequencing instead.
type OutOfOrderError struct {
	Article   string
	Effective Date
	Existing  Date
}

// Error implements the error interface.
func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("article %s: change effective %s precedes stored version effective %s",
		e.Article, e.Effective, e.Existing)
}

// ChronologyError reports a store append whose effective_from is not strictly
// greater than the last stored version's for the same article.
type ChronologyError struct {
	Article   string
	Effective Date
	Last      Date
}

// Error implements the error interface.
func (e *ChronologyError) Error() string {
	return fmt.Sprintf("article %s: append effective %s not after last version effective %s",
		e.Article, e.Effective, e.Last)
}

// CorruptionError reports detected corruption of the durable logs, such as
// overlapping version intervals. It is fatal for the code's consolidation:
// processing halts until an operator resolves it.
type CorruptionError struct {
	Code    string
	Article string
	Detail  string
}

// Error implements the error interface.
func (e *CorruptionError) Error() string {
	return fmt.Sprintf("code %s article %s: corrupt version log: %s", e.Code, e.Article, e.Detail)
}
