// Package amend parses amendment act text into structured article changes.
//
// The parser recognizes a closed grammar of drafting conventions. Every
// instruction fragment either matches exactly one grammar variant and yields
// one ArticleChange, or is reported as an unrecognized fragment with its text
// span. The parser never guesses a best-effort interpretation, and identical
// input always yields identical output.
package amend

import (
	"regexp"
	"strings"

	"github.com/coolbeans/consolex/pkg/types"
)

// ActMeta carries the act metadata delivered alongside the raw text by the
// upstream acquisition collaborator.
type ActMeta struct {
	// ID is the stable act identifier.
	ID string

	// Published is the publication date.
	Published types.Date

	// Effective is the date the act's changes take force.
	Effective types.Date

	// Sequence is the publication sequence number within the effective date.
	Sequence int
}

// variant is one recognized instruction shape. The set of variants is closed;
// patterns are tried in order and a fragment must match exactly one.
type variant struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string, meta ActMeta) types.ArticleChange
}

// article number token: "15" or "15.1"
const artNum = `(\d+(?:\.\d+)*)`

// paragraph/point marker token: "2", "2a", "c"
const mark = `([0-9]+[a-z]*|[a-z])`

// opening and closing quote classes; curly and low quotes appear in
// published acts alongside ASCII quotes.
const oq = `["\x{201C}\x{201E}]`
const cq = `["\x{201D}]`

// Parser converts raw amendment act text into an ordered list of structured
// article changes. Pure and stateless; safe for concurrent use.
type Parser struct {
	variants []variant
	opener   *regexp.Regexp
	numPfx   *regexp.Regexp
	quote    *regexp.Regexp
}

// NewParser creates a Parser with patterns for the recognized drafting
// conventions.
func NewParser() *Parser {
	variants := []variant{
		{
			name: "replace_text",
			pattern: regexp.MustCompile(`(?s)^Article\s+` + artNum +
				`\s+shall\s+be\s+stated\s+as\s+follows:\s*` + oq + `(.*)` + cq + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{Kind: types.ChangeReplaceText, Article: m[1], Text: m[2], ActID: meta.ID}
			},
		},
		{
			name: "insert_article",
			pattern: regexp.MustCompile(`(?s)^The\s+Code\s+shall\s+be\s+supplemented\s+with\s+Article\s+` + artNum +
				`\s+as\s+follows:\s*` + oq + `(.*)` + cq + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{Kind: types.ChangeInsertArticle, Article: m[1], Text: m[2], ActID: meta.ID}
			},
		},
		{
			name:    "repeal_article",
			pattern: regexp.MustCompile(`^Article\s+` + artNum + `\s+shall\s+be\s+deemed\s+repealed\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{Kind: types.ChangeRepealArticle, Article: m[1], ActID: meta.ID}
			},
		},
		{
			name: "renumber",
			pattern: regexp.MustCompile(`^Article\s+` + artNum +
				`\s+shall\s+be\s+renumbered\s+as\s+Article\s+` + artNum + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{Kind: types.ChangeRenumber, Article: m[1], NewNumber: m[2], ActID: meta.ID}
			},
		},
		{
			name: "supplement_point",
			pattern: regexp.MustCompile(`(?s)^Article\s+` + artNum +
				`\s+shall\s+be\s+supplemented\s+with\s+point\s+` + mark + `:\s*` + oq + `(.*)` + cq + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{
					Kind: types.ChangeAmendSubpart, Article: m[1], Subpart: m[2],
					Op: types.SubpartInsert, Text: m[3], ActID: meta.ID,
				}
			},
		},
		{
			name: "restate_paragraph",
			pattern: regexp.MustCompile(`(?s)^In\s+Article\s+` + artNum + `,?\s+paragraph\s+` + mark +
				`\s+shall\s+be\s+stated\s+as\s+follows:\s*` + oq + `(.*)` + cq + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{
					Kind: types.ChangeAmendSubpart, Article: m[1], Subpart: m[2],
					Op: types.SubpartRestate, Text: m[3], ActID: meta.ID,
				}
			},
		},
		{
			name: "substitute_words",
			pattern: regexp.MustCompile(`^In\s+Article\s+` + artNum + `(?:,?\s+paragraph\s+` + mark + `)?` +
				`\s+the\s+words\s+` + oq + `([^"\x{201C}\x{201D}\x{201E}]+)` + cq +
				`\s+shall\s+be\s+replaced\s+by\s+the\s+words\s+` + oq + `([^"\x{201C}\x{201D}\x{201E}]+)` + cq + `\.?\s*$`),
			build: func(m []string, meta ActMeta) types.ArticleChange {
				return types.ArticleChange{
					Kind: types.ChangeAmendSubpart, Article: m[1], Subpart: m[2],
					Op: types.SubpartSubstitute, OldWords: m[3], NewWords: m[4], ActID: meta.ID,
				}
			},
		},
	}

	return &Parser{
		variants: variants,
		opener:   regexp.MustCompile(`^\s*(?:\d+[.)]\s+)?(?:Article\s|In\s+Article\s|The\s+Code\s)`),
		numPfx:   regexp.MustCompile(`^\s*\d+[.)]\s+`),
		quote:    regexp.MustCompile(oq + `|` + cq),
	}
}

// Parse converts raw act text into an AmendmentAct. Changes appear in the
// exact order instructions appear in the text; fragments outside the grammar
// are collected as unrecognized. Parse is total: it always returns an act.
func (p *Parser) Parse(meta ActMeta, raw string) types.AmendmentAct {
	act := types.AmendmentAct{
		ID:        meta.ID,
		Published: meta.Published,
		Effective: meta.Effective,
		Sequence:  meta.Sequence,
	}

	for _, frag := range p.split(raw) {
		change, reason := p.match(frag.text, meta)
		if reason != "" {
			act.Unrecognized = append(act.Unrecognized, types.UnrecognizedFragment{
				Text:   frag.text,
				Offset: frag.offset,
				Reason: reason,
			})
			continue
		}
		act.Changes = append(act.Changes, change)
	}

	return act
}

// fragment is one instruction fragment with its byte offset in the raw text.
type fragment struct {
	text   string
	offset int
}

// split segments raw act text into instruction fragments. A fragment begins
// at a line opening with an instruction keyword (optionally prefixed with a
// list number) and extends until the next such line. Quoted blocks span
// lines: an opener inside an unclosed quote never starts a new fragment.
func (p *Parser) split(raw string) []fragment {
	var frags []fragment
	var cur strings.Builder
	curStart := -1
	inQuote := false

	flush := func() {
		if curStart < 0 {
			return
		}
		text := strings.TrimRight(cur.String(), "\n")
		if strings.TrimSpace(text) != "" {
			frags = append(frags, fragment{text: text, offset: curStart})
		}
		cur.Reset()
		curStart = -1
	}

	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		trimmed := strings.TrimRight(line, "\n")
		starts := !inQuote && p.opener.MatchString(trimmed)
		if starts {
			flush()
			curStart = offset
		} else if curStart < 0 && strings.TrimSpace(trimmed) != "" {
			// Content before any instruction opener forms its own
			// fragment so it surfaces as unrecognized instead of
			// being silently dropped.
			curStart = offset
		}
		if curStart >= 0 {
			cur.WriteString(line)
		}
		if n := len(p.quote.FindAllString(trimmed, -1)); n%2 == 1 {
			inQuote = !inQuote
		}
		offset += len(line)
	}
	flush()

	return frags
}

// match tries every grammar variant against the fragment. It returns the
// built change when exactly one variant matches, or an empty change and a
// non-empty reason otherwise.
func (p *Parser) match(frag string, meta ActMeta) (types.ArticleChange, string) {
	body := p.numPfx.ReplaceAllString(strings.TrimSpace(frag), "")

	var matched []int
	for i, v := range p.variants {
		if v.pattern.MatchString(body) {
			matched = append(matched, i)
		}
	}

	switch len(matched) {
	case 1:
		v := p.variants[matched[0]]
		m := v.pattern.FindStringSubmatch(body)
		return v.build(m, meta), ""
	case 0:
		return types.ArticleChange{}, "no grammar variant matched"
	default:
		names := make([]string, len(matched))
		for i, idx := range matched {
			names[i] = p.variants[idx].name
		}
		return types.ArticleChange{}, "ambiguous: matches variants " + strings.Join(names, ", ")
	}
}
