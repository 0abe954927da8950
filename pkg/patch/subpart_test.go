package patch

import (
	"strings"
	"testing"
)

const sampleArticle = `1. Processing of personal data shall be lawful.
2. Consent must be:
a) freely given;
b) specific and informed.
3. The supervisory authority oversees compliance.`

func TestRestateSubpart_Paragraph(t *testing.T) {
	got, err := restateSubpart(sampleArticle, "3", "The Agency oversees compliance.")
	if err != nil {
		t.Fatalf("restateSubpart failed: %v", err)
	}

	want := `1. Processing of personal data shall be lawful.
2. Consent must be:
a) freely given;
b) specific and informed.
3. The Agency oversees compliance.`
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestRestateSubpart_ParagraphSwallowsItsPoints(t *testing.T) {
	got, err := restateSubpart(sampleArticle, "2", "Consent must be unambiguous.")
	if err != nil {
		t.Fatalf("restateSubpart failed: %v", err)
	}

	want := `1. Processing of personal data shall be lawful.
2. Consent must be unambiguous.
3. The supervisory authority oversees compliance.`
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestRestateSubpart_Point(t *testing.T) {
	got, err := restateSubpart(sampleArticle, "b", "specific, informed and unambiguous.")
	if err != nil {
		t.Fatalf("restateSubpart failed: %v", err)
	}

	if !strings.Contains(got, "b) specific, informed and unambiguous.") {
		t.Errorf("Point b not restated: %q", got)
	}
	// Every other byte stays identical.
	if !strings.HasPrefix(got, "1. Processing of personal data shall be lawful.\n2. Consent must be:\na) freely given;\n") {
		t.Errorf("Bytes before the point changed: %q", got)
	}
	if !strings.HasSuffix(got, "\n3. The supervisory authority oversees compliance.") {
		t.Errorf("Bytes after the point changed: %q", got)
	}
}

func TestRestateSubpart_NotFound(t *testing.T) {
	if _, err := restateSubpart(sampleArticle, "9", "anything"); err == nil {
		t.Error("Expected error for missing subpart")
	}
}

func TestRestateSubpart_AmbiguousMarker(t *testing.T) {
	// "2" names both paragraph 2 and point 2).
	text := "1. Intro.\n2. Second paragraph:\n1) first point;\n2) second point."
	if _, err := restateSubpart(text, "2", "anything"); err == nil {
		t.Error("Expected ambiguity error when marker matches paragraph and point")
	}
}

func TestRestateSubpart_DuplicateSameKindMarker(t *testing.T) {
	// A malformed article carrying point a) twice must not silently
	// resolve to the first occurrence.
	text := "1. First list:\na) one;\n2. Second list:\na) two."
	if _, err := restateSubpart(text, "a", "anything"); err == nil {
		t.Error("Expected ambiguity error when two points carry the same marker")
	}
}

func TestRestateSubpart_NeverMatchesBySubstring(t *testing.T) {
	// The text of paragraph 1 mentions "2." but only the structural
	// marker at line start addresses paragraph 2.
	text := "1. See paragraph 2. for details.\n2. The details."
	got, err := restateSubpart(text, "2", "The amended details.")
	if err != nil {
		t.Fatalf("restateSubpart failed: %v", err)
	}
	want := "1. See paragraph 2. for details.\n2. The amended details."
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestInsertPoint_AfterLastPoint(t *testing.T) {
	got, err := insertPoint(sampleArticle, "c", "unambiguous.")
	if err != nil {
		t.Fatalf("insertPoint failed: %v", err)
	}

	want := `1. Processing of personal data shall be lawful.
2. Consent must be:
a) freely given;
b) specific and informed.
c) unambiguous.
3. The supervisory authority oversees compliance.`
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestInsertPoint_NoExistingPoints(t *testing.T) {
	text := "1. Single paragraph."
	got, err := insertPoint(text, "1", "first point.")
	if err != nil {
		t.Fatalf("insertPoint failed: %v", err)
	}
	want := "1. Single paragraph.\n1) first point."
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestInsertPoint_KeepsWrappedStyle(t *testing.T) {
	text := "1. Consent must be:\n(a) freely given;\n(b) specific."
	got, err := insertPoint(text, "c", "informed.")
	if err != nil {
		t.Fatalf("insertPoint failed: %v", err)
	}
	if !strings.Contains(got, "(c) informed.") {
		t.Errorf("Expected wrapped point style, got %q", got)
	}
}

func TestInsertPoint_DuplicateMarker(t *testing.T) {
	if _, err := insertPoint(sampleArticle, "a", "again"); err == nil {
		t.Error("Expected error for existing point marker")
	}
}

func TestSubstituteWords_WholeArticle(t *testing.T) {
	got, err := substituteWords(sampleArticle, "", "supervisory authority", "Agency")
	if err != nil {
		t.Fatalf("substituteWords failed: %v", err)
	}
	if !strings.Contains(got, "3. The Agency oversees compliance.") {
		t.Errorf("Substitution missing: %q", got)
	}
}

func TestSubstituteWords_ScopedToSubpart(t *testing.T) {
	text := "1. The Minister decides.\n2. The Minister appeals."
	got, err := substituteWords(text, "2", "The Minister", "The Agency")
	if err != nil {
		t.Fatalf("substituteWords failed: %v", err)
	}
	want := "1. The Minister decides.\n2. The Agency appeals."
	if got != want {
		t.Errorf("Result mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestSubstituteWords_NotFound(t *testing.T) {
	if _, err := substituteWords(sampleArticle, "", "no such words", "x"); err == nil {
		t.Error("Expected error for phrase not present")
	}
}

func TestScanUnits_Offsets(t *testing.T) {
	units := scanUnits(sampleArticle)
	if len(units) != 5 {
		t.Fatalf("Expected 5 units, got %d", len(units))
	}

	// Paragraph 2 spans its points; paragraph 3 runs to the end.
	var para2, para3 unit
	for _, u := range units {
		if u.kind == unitParagraph && u.marker == "2" {
			para2 = u
		}
		if u.kind == unitParagraph && u.marker == "3" {
			para3 = u
		}
	}
	if sampleArticle[para2.end:para3.start] != "" {
		t.Errorf("Paragraph 2 should end where paragraph 3 starts")
	}
	if para3.end != len(sampleArticle) {
		t.Errorf("Paragraph 3 should run to end of text, got %d", para3.end)
	}
	if !strings.HasPrefix(sampleArticle[para2.contentStart:], "Consent must be:") {
		t.Errorf("Paragraph 2 contentStart misplaced")
	}
}
