package parse

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hazyhaar/speakdown/element"
)

var (
	codeSpanRe = regexp.MustCompile("`([^`]+)`")
	linkRe     = regexp.MustCompile(`!?\[([^\]]+)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe   = regexp.MustCompile(`\*([^*\s](?:[^*]*[^*\s])?)\*`)
	spacesRe   = regexp.MustCompile(`\s+`)
)

// filler replaces masked bytes in the working copy of a line. It is neither
// whitespace nor a marker, so no inline pattern can start or stop on it.
const filler = 0x1a

type span struct {
	start, end int
	elem       element.Element
}

func (s span) overlaps(o span) bool {
	return s.start < o.end && o.start < s.end
}

func (s span) overlapsAny(others []span) bool {
	for _, o := range others {
		if s.overlaps(o) {
			return true
		}
	}
	return false
}

func (s span) contains(i int) bool {
	return i >= s.start && i < s.end
}

// inline splits one line into ordered elements and returns them with the
// line's marker-free text. Code spans win over links, links over bold and
// bold over italic. Patterns run on a working copy of the line in which
// backslash escapes and every accepted span are masked, so a later pattern
// never matches inside or across an earlier one.
func (p *parser) inline(n int, s string) ([]element.Element, string) {
	work := []byte(s)
	for i := 0; i+1 < len(work); i++ {
		if work[i] == '\\' && isPunct(work[i+1]) {
			work[i], work[i+1] = filler, filler
			i++
		}
	}

	var accepted []span
	accept := func(re *regexp.Regexp, build func(m []string) element.Element) {
		var found []span
		for _, loc := range re.FindAllSubmatchIndex(work, -1) {
			sp := span{start: loc[0], end: loc[1]}
			if sp.overlapsAny(accepted) {
				continue
			}
			m := make([]string, len(loc)/2)
			for i := range m {
				if loc[2*i] >= 0 {
					m[i] = s[loc[2*i]:loc[2*i+1]]
				}
			}
			sp.elem = build(m)
			found = append(found, sp)
		}
		for _, sp := range found {
			for i := sp.start; i < sp.end; i++ {
				work[i] = filler
			}
		}
		accepted = append(accepted, found...)
	}

	accept(codeSpanRe, func(m []string) element.Element {
		return element.Code(strings.TrimSpace(m[1]))
	})
	accept(linkRe, func(m []string) element.Element {
		return element.Link(stripMarkers(strings.TrimSpace(m[1])), m[2])
	})
	// WHAT: snapshot before bold is masked.
	// WHY: leftover stars are paired against it to spot crossed emphasis.
	beforeBold := append([]byte(nil), work...)
	accept(boldRe, func(m []string) element.Element {
		return element.Element{Type: element.TypeBold, Content: stripMarkers(strings.TrimSpace(m[1]))}
	})
	var bolds []span
	for _, a := range accepted {
		if a.elem.Type == element.TypeBold {
			bolds = append(bolds, a)
		}
	}
	accept(italicRe, func(m []string) element.Element {
		return element.Element{Type: element.TypeItalic, Content: stripMarkers(strings.TrimSpace(m[1]))}
	})
	p.warnCrossedEmphasis(n, work, beforeBold, bolds)

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].start < accepted[j].start })

	var out []element.Element
	var plain strings.Builder
	emitGap := func(gap string) {
		gap = stripMarkers(gap)
		plain.WriteString(gap)
		if t := strings.TrimSpace(gap); t != "" {
			out = append(out, element.Text(t))
		}
	}

	pos := 0
	for _, sp := range accepted {
		emitGap(s[pos:sp.start])
		if sp.elem.Content != "" {
			out = append(out, sp.elem)
			plain.WriteString(sp.elem.Content)
		}
		pos = sp.end
	}
	emitGap(s[pos:])

	return out, strings.TrimSpace(spacesRe.ReplaceAllString(plain.String(), " "))
}

// warnCrossedEmphasis records one warning per star left unmatched after the
// italic pass whose nearest partner star sits inside a bold span, as in
// "*a**b*c**". Operator stars with whitespace on both sides are ignored.
func (p *parser) warnCrossedEmphasis(n int, work, beforeBold []byte, bolds []span) {
	if len(bolds) == 0 {
		return
	}
	inBold := func(i int) bool {
		for _, b := range bolds {
			if b.contains(i) {
				return true
			}
		}
		return false
	}
	for i, c := range work {
		if c != '*' {
			continue
		}
		opens := i+1 < len(work) && !isSpace(work[i+1]) && work[i+1] != '*'
		closes := i > 0 && !isSpace(work[i-1]) && work[i-1] != '*'
		crossed := false
		if opens {
			if j := bytes.IndexByte(beforeBold[i+1:], '*'); j >= 0 && inBold(i+1+j) {
				crossed = true
			}
		}
		if !crossed && closes {
			if j := bytes.LastIndexByte(beforeBold[:i], '*'); j >= 0 && inBold(j) {
				crossed = true
			}
		}
		if crossed {
			p.warnings = append(p.warnings, Warning{
				Line:    n,
				Message: fmt.Sprintf("overlapping emphasis spans at column %d", i+1),
			})
		}
	}
}

// stripMarkers removes emphasis asterisks and stray backticks and resolves
// backslash escapes to the literal character. A run of asterisks with
// whitespace on both sides is an operator ("2 * 3") and stays.
func stripMarkers(s string) string {
	if !strings.ContainsAny(s, "*`\\") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); {
		switch s[i] {
		case '\\':
			if i+1 < len(s) && isPunct(s[i+1]) {
				sb.WriteByte(s[i+1])
				i += 2
				continue
			}
			sb.WriteByte(s[i])
			i++
		case '`':
			i++
		case '*':
			j := i
			for j < len(s) && s[j] == '*' {
				j++
			}
			spaceBefore := i > 0 && isSpace(s[i-1])
			spaceAfter := j < len(s) && isSpace(s[j])
			if spaceBefore && spaceAfter {
				sb.WriteString(s[i:j])
			}
			i = j
		default:
			sb.WriteByte(s[i])
			i++
		}
	}
	return sb.String()
}

// isPunct reports whether b is ASCII punctuation, the set a backslash may
// escape.
func isPunct(b byte) bool {
	return b >= '!' && b <= '/' || b >= ':' && b <= '@' || b >= '[' && b <= '`' || b >= '{' && b <= '~'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
