package amend

import (
	"reflect"
	"strings"
	"testing"

	"github.com/coolbeans/consolex/pkg/types"
)

func testMeta() ActMeta {
	return ActMeta{
		ID:        "act-2010-45",
		Published: types.MustDate("2010-05-15"),
		Effective: types.MustDate("2010-06-01"),
		Sequence:  45,
	}
}

func TestParser_ReplaceText(t *testing.T) {
	p := NewParser()
	act := p.Parse(testMeta(), `Article 105 shall be stated as follows: "The new consolidated text."`)

	if len(act.Unrecognized) != 0 {
		t.Fatalf("Expected no unrecognized fragments, got %v", act.Unrecognized)
	}
	if len(act.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(act.Changes))
	}

	c := act.Changes[0]
	if c.Kind != types.ChangeReplaceText {
		t.Errorf("Expected REPLACE_TEXT, got %s", c.Kind)
	}
	if c.Article != "105" {
		t.Errorf("Expected article 105, got %s", c.Article)
	}
	if c.Text != "The new consolidated text." {
		t.Errorf("Unexpected text: %q", c.Text)
	}
	if c.ActID != "act-2010-45" {
		t.Errorf("Expected source act id, got %s", c.ActID)
	}
}

func TestParser_AllVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.ArticleChange
	}{
		{
			name: "insert article",
			raw:  `The Code shall be supplemented with Article 15.1 as follows: "Inserted text."`,
			want: types.ArticleChange{Kind: types.ChangeInsertArticle, Article: "15.1", Text: "Inserted text.", ActID: "act-2010-45"},
		},
		{
			name: "repeal",
			raw:  `Article 200 shall be deemed repealed.`,
			want: types.ArticleChange{Kind: types.ChangeRepealArticle, Article: "200", ActID: "act-2010-45"},
		},
		{
			name: "renumber",
			raw:  `Article 30 shall be renumbered as Article 31.`,
			want: types.ArticleChange{Kind: types.ChangeRenumber, Article: "30", NewNumber: "31", ActID: "act-2010-45"},
		},
		{
			name: "supplement point",
			raw:  `Article 7 shall be supplemented with point 4: "New point text."`,
			want: types.ArticleChange{Kind: types.ChangeAmendSubpart, Article: "7", Subpart: "4", Op: types.SubpartInsert, Text: "New point text.", ActID: "act-2010-45"},
		},
		{
			name: "restate paragraph",
			raw:  `In Article 9, paragraph 2 shall be stated as follows: "Restated paragraph."`,
			want: types.ArticleChange{Kind: types.ChangeAmendSubpart, Article: "9", Subpart: "2", Op: types.SubpartRestate, Text: "Restated paragraph.", ActID: "act-2010-45"},
		},
		{
			name: "substitute words whole article",
			raw:  `In Article 12 the words "three months" shall be replaced by the words "six months".`,
			want: types.ArticleChange{Kind: types.ChangeAmendSubpart, Article: "12", Op: types.SubpartSubstitute, OldWords: "three months", NewWords: "six months", ActID: "act-2010-45"},
		},
		{
			name: "substitute words in paragraph",
			raw:  `In Article 12, paragraph 3 the words "the Minister" shall be replaced by the words "the Agency".`,
			want: types.ArticleChange{Kind: types.ChangeAmendSubpart, Article: "12", Subpart: "3", Op: types.SubpartSubstitute, OldWords: "the Minister", NewWords: "the Agency", ActID: "act-2010-45"},
		},
	}

	p := NewParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			act := p.Parse(testMeta(), tt.raw)
			if len(act.Unrecognized) != 0 {
				t.Fatalf("Unexpected unrecognized fragments: %v", act.Unrecognized)
			}
			if len(act.Changes) != 1 {
				t.Fatalf("Expected 1 change, got %d", len(act.Changes))
			}
			if !reflect.DeepEqual(act.Changes[0], tt.want) {
				t.Errorf("Change mismatch:\n got  %+v\n want %+v", act.Changes[0], tt.want)
			}
		})
	}
}

func TestParser_OrderPreserved(t *testing.T) {
	// The same article inserted then immediately amended within one act;
	// replay depends on instruction order, not arrival or sort order.
	raw := strings.Join([]string{
		`1. The Code shall be supplemented with Article 44 as follows: "1. Original paragraph."`,
		`2. In Article 44, paragraph 1 shall be stated as follows: "Amended paragraph."`,
		`3. Article 200 shall be deemed repealed.`,
	}, "\n")

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 3 {
		t.Fatalf("Expected 3 changes, got %d (unrecognized: %v)", len(act.Changes), act.Unrecognized)
	}
	if act.Changes[0].Kind != types.ChangeInsertArticle || act.Changes[0].Article != "44" {
		t.Errorf("Change 0: expected INSERT_ARTICLE 44, got %s %s", act.Changes[0].Kind, act.Changes[0].Article)
	}
	if act.Changes[1].Kind != types.ChangeAmendSubpart || act.Changes[1].Article != "44" {
		t.Errorf("Change 1: expected AMEND_SUBPART 44, got %s %s", act.Changes[1].Kind, act.Changes[1].Article)
	}
	if act.Changes[2].Kind != types.ChangeRepealArticle {
		t.Errorf("Change 2: expected REPEAL_ARTICLE, got %s", act.Changes[2].Kind)
	}
}

func TestParser_MultilineQuotedText(t *testing.T) {
	raw := "Article 5 shall be stated as follows: \"1. First paragraph.\n2. Second paragraph.\n3. Third paragraph.\""

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d (unrecognized: %v)", len(act.Changes), act.Unrecognized)
	}
	want := "1. First paragraph.\n2. Second paragraph.\n3. Third paragraph."
	if act.Changes[0].Text != want {
		t.Errorf("Text mismatch:\n got  %q\n want %q", act.Changes[0].Text, want)
	}
}

func TestParser_QuotedTextDoesNotStartFragment(t *testing.T) {
	// An "Article ..." line inside a quoted block belongs to the quoted
	// text, not to a new instruction.
	raw := "Article 5 shall be stated as follows: \"Scope.\nArticle 6 applies accordingly.\"\nArticle 7 shall be deemed repealed."

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 2 {
		t.Fatalf("Expected 2 changes, got %d (unrecognized: %v)", len(act.Changes), act.Unrecognized)
	}
	if !strings.Contains(act.Changes[0].Text, "Article 6 applies accordingly.") {
		t.Errorf("Quoted text lost its inner line: %q", act.Changes[0].Text)
	}
	if act.Changes[1].Kind != types.ChangeRepealArticle || act.Changes[1].Article != "7" {
		t.Errorf("Expected repeal of article 7, got %+v", act.Changes[1])
	}
}

func TestParser_UnrecognizedFragment(t *testing.T) {
	raw := strings.Join([]string{
		`Article 10 shall be deemed repealed.`,
		`Article 11 is hereby solemnly reconsidered.`,
	}, "\n")

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(act.Changes))
	}
	if len(act.Unrecognized) != 1 {
		t.Fatalf("Expected 1 unrecognized fragment, got %d", len(act.Unrecognized))
	}

	u := act.Unrecognized[0]
	if !strings.Contains(u.Text, "solemnly reconsidered") {
		t.Errorf("Fragment text mismatch: %q", u.Text)
	}
	if u.Offset == 0 {
		t.Error("Expected non-zero offset for second fragment")
	}
	if u.Reason == "" {
		t.Error("Expected a reason for the rejection")
	}
}

func TestParser_PreambleSurfacesAsUnrecognized(t *testing.T) {
	raw := "Stray header line\nArticle 3 shall be deemed repealed."

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d", len(act.Changes))
	}
	if len(act.Unrecognized) != 1 {
		t.Fatalf("Expected stray content flagged, got %v", act.Unrecognized)
	}
	if act.Unrecognized[0].Offset != 0 {
		t.Errorf("Expected offset 0, got %d", act.Unrecognized[0].Offset)
	}
}

func TestParser_Deterministic(t *testing.T) {
	raw := strings.Join([]string{
		`Article 1 shall be stated as follows: "Text one."`,
		`In Article 2 the words "a" shall be replaced by the words "b".`,
		`Gibberish instruction.`,
	}, "\n")

	p := NewParser()
	first := p.Parse(testMeta(), raw)
	for i := 0; i < 5; i++ {
		again := p.Parse(testMeta(), raw)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("Parse not deterministic on iteration %d:\n got  %+v\n want %+v", i, again, first)
		}
	}
}

func TestParser_CurlyQuotes(t *testing.T) {
	raw := "Article 105 shall be stated as follows: \u201cCurly quoted text.\u201d"

	p := NewParser()
	act := p.Parse(testMeta(), raw)

	if len(act.Changes) != 1 {
		t.Fatalf("Expected 1 change, got %d (unrecognized: %v)", len(act.Changes), act.Unrecognized)
	}
	if act.Changes[0].Text != "Curly quoted text." {
		t.Errorf("Unexpected text: %q", act.Changes[0].Text)
	}
}
