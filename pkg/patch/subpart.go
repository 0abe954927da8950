package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// Sub-part patching locates the target paragraph or point by its structural
// numbering marker inside the prior text and substitutes only that unit,
// leaving all other bytes of the article identical. Location never relies on
// substring search of the replaced phrase.

// unitKind distinguishes the two structural levels of article text.
type unitKind int

const (
	unitParagraph unitKind = iota // "2. ..." at line start
	unitPoint                     // "a) ..." or "(a) ..." at line start
)

// unit is one structural sub-part of an article text, addressed by byte
// offsets into the original string.
type unit struct {
	kind         unitKind
	marker       string
	start        int  // offset of the marker line
	contentStart int  // offset just past the marker and following spaces
	end          int  // offset of the next same-or-higher level unit
	wrapped      bool // point style "(a)" rather than "a)"
	indent       string
}

var (
	paragraphLine = regexp.MustCompile(`^(\s*)(\d+[a-z]*)\.\s+`)
	pointLine     = regexp.MustCompile(`^(\s*)(\d+[a-z]*|[a-z])\)\s+`)
	pointLineWrap = regexp.MustCompile(`^(\s*)\((\d+[a-z]*|[a-z])\)\s+`)
)

// scanUnits splits article text into its structural units. Lines that open
// no unit belong to the preceding one.
func scanUnits(text string) []unit {
	var units []unit
	offset := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		if m := pointLineWrap.FindStringSubmatch(line); m != nil {
			units = append(units, unit{
				kind: unitPoint, marker: m[2], start: offset,
				contentStart: offset + len(m[0]),
				wrapped:      true, indent: m[1],
			})
		} else if m := pointLine.FindStringSubmatch(line); m != nil {
			units = append(units, unit{
				kind: unitPoint, marker: m[2], start: offset,
				contentStart: offset + len(m[0]),
				indent:       m[1],
			})
		} else if m := paragraphLine.FindStringSubmatch(line); m != nil {
			units = append(units, unit{
				kind: unitParagraph, marker: m[2], start: offset,
				contentStart: offset + len(m[0]),
				indent:       m[1],
			})
		}
		offset += len(line)
	}

	// Close each unit at the start of the next unit of the same or a
	// higher level; a paragraph swallows its points.
	for i := range units {
		units[i].end = len(text)
		for j := i + 1; j < len(units); j++ {
			if units[i].kind == unitPoint || units[j].kind == unitParagraph {
				units[i].end = units[j].start
				break
			}
		}
	}

	return units
}

// locate finds the single unit carrying the marker. A marker carried by more
// than one unit is ambiguous and rejected, whether the units are a paragraph
// and a point or two units of the same kind in a malformed article.
func locate(text, marker string) (unit, error) {
	var found []unit
	for _, u := range scanUnits(text) {
		if u.marker == marker {
			found = append(found, u)
		}
	}

	switch {
	case len(found) == 0:
		return unit{}, fmt.Errorf("subpart %q not found", marker)
	case len(found) > 1:
		return unit{}, fmt.Errorf("subpart marker %q is ambiguous: carried by %d units", marker, len(found))
	}
	return found[0], nil
}

// restateSubpart replaces the content of the unit carrying marker with
// newText, preserving the marker itself and every byte outside the unit.
func restateSubpart(text, marker, newText string) (string, error) {
	u, err := locate(text, marker)
	if err != nil {
		return "", err
	}

	content := newText
	if u.end > u.start && strings.HasSuffix(text[u.start:u.end], "\n") {
		content += "\n"
	}
	return text[:u.contentStart] + content + text[u.end:], nil
}

// insertPoint adds a new point with the given marker after the article's last
// existing point, or at the end of the text when the article has none. The
// marker is rendered in the article's prevailing point style.
func insertPoint(text, marker, newText string) (string, error) {
	units := scanUnits(text)

	var last *unit
	for i := range units {
		u := &units[i]
		if u.kind != unitPoint {
			continue
		}
		if u.marker == marker {
			return "", fmt.Errorf("point %q already exists", marker)
		}
		last = u
	}

	prefix := marker + ") "
	indent := ""
	at := len(text)
	if last != nil {
		if last.wrapped {
			prefix = "(" + marker + ") "
		}
		indent = last.indent
		at = last.end
	}

	line := indent + prefix + newText
	switch {
	case at == len(text) && !strings.HasSuffix(text, "\n") && len(text) > 0:
		line = "\n" + line
	case at == len(text) && strings.HasSuffix(text, "\n"):
		line += "\n"
	case at < len(text):
		line += "\n"
	}

	return text[:at] + line + text[at:], nil
}

// substituteWords replaces every occurrence of old with repl inside the unit
// carrying marker, or inside the whole article text when marker is empty.
// Zero occurrences is a conflict: the instruction's premise does not hold.
func substituteWords(text, marker, old, repl string) (string, error) {
	if old == "" {
		return "", fmt.Errorf("empty phrase to replace")
	}

	regionStart, regionEnd := 0, len(text)
	if marker != "" {
		u, err := locate(text, marker)
		if err != nil {
			return "", err
		}
		regionStart, regionEnd = u.contentStart, u.end
	}

	region := text[regionStart:regionEnd]
	if !strings.Contains(region, old) {
		return "", fmt.Errorf("words %q not found", old)
	}

	return text[:regionStart] + strings.ReplaceAll(region, old, repl) + text[regionEnd:], nil
}
