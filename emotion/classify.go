package emotion

import (
	"strings"

	"github.com/hazyhaar/speakdown/element"
)

// Scores holds the classifier total for every archetype.
type Scores map[DocType]int

// Score computes the archetype totals for a document:
//
//   - +1 per keyword of an archetype present in the lower-cased text,
//   - +1 per pattern match,
//   - +3 technical per code span or code block,
//   - +2 per heading containing a tutorial, marketing or technical keyword,
//   - +2 tutorial when there are more than three list items,
//   - +1 marketing when the text contains "!".
func (r *Rules) Score(elems []element.Element) Scores {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.Content)
	}
	original := sb.String()
	lower := strings.ToLower(original)

	scores := make(Scores, 4)
	for _, dt := range DocTypes() {
		for _, kw := range r.Keywords[dt] {
			if strings.Contains(lower, kw) {
				scores[dt]++
			}
		}
		for _, p := range r.Patterns[dt] {
			text := lower
			if p.caseSensitive {
				text = original
			}
			scores[dt] += len(p.re.FindAllStringIndex(text, -1))
		}
	}

	listItems := 0
	for _, e := range elems {
		switch e.Type {
		case element.TypeCode, element.TypeCodeBlock:
			scores[Technical] += 3
		case element.TypeListItem:
			listItems++
		case element.TypeHeading:
			heading := strings.ToLower(e.Content)
			for _, dt := range []DocType{Tutorial, Marketing, Technical} {
				if containsAny(heading, r.Keywords[dt]) {
					scores[dt] += 2
				}
			}
		}
	}
	if listItems > 3 {
		scores[Tutorial] += 2
	}
	if strings.Contains(original, "!") {
		scores[Marketing]++
	}
	return scores
}

// Best returns the archetype with the strictly highest score. Ties go to
// the archetype listed first in DocTypes; all-zero scores mean Narrative.
func (s Scores) Best() DocType {
	best, bestScore := Narrative, 0
	for _, dt := range DocTypes() {
		if s[dt] > bestScore {
			best, bestScore = dt, s[dt]
		}
	}
	return best
}

// DetectDocumentType classifies elems with the given rules.
func (r *Rules) DetectDocumentType(elems []element.Element) DocType {
	return r.Score(elems).Best()
}

var defaultRules = DefaultRules()

// DetectDocumentType classifies elems with the default rules.
func DetectDocumentType(elems []element.Element) DocType {
	return defaultRules.DetectDocumentType(elems)
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
