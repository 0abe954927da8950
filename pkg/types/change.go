package types

import (
	"encoding/json"
	"fmt"
)

// ChangeKind represents the kind of patch operation an amendment instruction
// describes. The set is closed: any instruction outside it is reported as an
// unrecognized fragment, never guessed at.
type ChangeKind int

const (
	// ChangeReplaceText restates the full text of an existing article.
	ChangeReplaceText ChangeKind = iota
	// ChangeInsertArticle adds a new article to the code.
	ChangeInsertArticle
	// ChangeRepealArticle removes an article from force.
	ChangeRepealArticle
	// ChangeRenumber moves an article to a new number.
	ChangeRenumber
	// ChangeAmendSubpart modifies a paragraph or point inside an article.
	ChangeAmendSubpart
)

// String returns the string representation of a ChangeKind.
func (k ChangeKind) String() string {
	switch k {
	case ChangeReplaceText:
		return "REPLACE_TEXT"
	case ChangeInsertArticle:
		return "INSERT_ARTICLE"
	case ChangeRepealArticle:
		return "REPEAL_ARTICLE"
	case ChangeRenumber:
		return "RENUMBER"
	case ChangeAmendSubpart:
		return "AMEND_SUBPART"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON implements json.Marshaler for ChangeKind.
func (k ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for ChangeKind.
func (k *ChangeKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "REPLACE_TEXT":
		*k = ChangeReplaceText
	case "INSERT_ARTICLE":
		*k = ChangeInsertArticle
	case "REPEAL_ARTICLE":
		*k = ChangeRepealArticle
	case "RENUMBER":
		*k = ChangeRenumber
	case "AMEND_SUBPART":
		*k = ChangeAmendSubpart
	default:
		return fmt.Errorf("unknown change kind %q", s)
	}
	return nil
}

// SubpartOp distinguishes the recognized forms of AMEND_SUBPART.
type SubpartOp int

const (
	// SubpartRestate replaces the full text of one paragraph or point.
	SubpartRestate SubpartOp = iota
	// SubpartInsert adds a new point to an article.
	SubpartInsert
	// SubpartSubstitute replaces a phrase with another phrase.
	SubpartSubstitute
)

// String returns the string representation of a SubpartOp.
func (o SubpartOp) String() string {
	switch o {
	case SubpartRestate:
		return "restate"
	case SubpartInsert:
		return "insert"
	case SubpartSubstitute:
		return "substitute"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for SubpartOp.
func (o SubpartOp) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON implements json.Unmarshaler for SubpartOp.
func (o *SubpartOp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "restate":
		*o = SubpartRestate
	case "insert":
		*o = SubpartInsert
	case "substitute":
		*o = SubpartSubstitute
	default:
		return fmt.Errorf("unknown subpart op %q", s)
	}
	return nil
}

// ArticleChange is one structured patch operation derived from an amendment
// act. Changes are applied strictly in the order they appear in the act text.
type ArticleChange struct {
	// Kind is the patch operation.
	Kind ChangeKind `json:"kind"`

	// Article is the target article number.
	Article string `json:"article"`

	// NewNumber is the destination number for RENUMBER.
	NewNumber string `json:"new_number,omitempty"`

	// Subpart is the structural marker of the target paragraph or point
	// for AMEND_SUBPART (e.g., "2" for a paragraph, "c" for a point).
	Subpart string `json:"subpart,omitempty"`

	// Op is the AMEND_SUBPART form.
	Op SubpartOp `json:"op,omitempty"`

	// Text is the new text. Absent for repeal and renumber.
	Text string `json:"text,omitempty"`

	// OldWords and NewWords carry the phrase pair for the substitution form.
	OldWords string `json:"old_words,omitempty"`
	NewWords string `json:"new_words,omitempty"`

	// ActID references the source amendment act.
	ActID string `json:"act_id"`
}

// UnrecognizedFragment records an instruction fragment the parser could not
// match to exactly one grammar variant. The fragment produces no change.
type UnrecognizedFragment struct {
	// Text is the offending fragment, verbatim.
	Text string `json:"text"`

	// Offset is the byte offset of the fragment in the act text.
	Offset int `json:"offset"`

	// Reason describes why the fragment was rejected.
	Reason string `json:"reason"`
}

// AmendmentAct is an enacted document carrying an ordered list of article
// changes. Immutable once parsed; re-parsing the same raw text yields an
// equal act.
type AmendmentAct struct {
	// ID is the stable act identifier.
	ID string `json:"id"`

	// Published is the publication date of the act.
	Published Date `json:"published"`

	// Effective is the date the act's changes take force.
	Effective Date `json:"effective"`

	// Sequence is the publication sequence number, used to break ties
	// between acts sharing an effective date.
	Sequence int `json:"sequence"`

	// Changes lists the structured changes in instruction order.
	Changes []ArticleChange `json:"changes"`

	// Unrecognized lists fragments the parser rejected. A non-empty list
	// makes the act unapplicable until reviewed.
	Unrecognized []UnrecognizedFragment `json:"unrecognized,omitempty"`
}
