// Package parse turns canonical Markdown into an ordered sequence of
// semantic elements.
//
// Block constructs are recognised before inline ones: fenced code blocks
// are lifted out first, then each remaining line is classified as a list
// item, heading, quote or plain line, and finally inline formatting (bold,
// italic, code spans, links) is extracted left to right. The parser never
// fails; stray markup degrades to plain text.
package parse

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/speakdown/element"
)

// Warning reports input the parser could not interpret unambiguously.
type Warning struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

var (
	listRe    = regexp.MustCompile(`^([-*+]|\d{1,9}[.)])\s+(.*)$`)
	headingRe = regexp.MustCompile(`^(#{1,6})(?:\s+(.*?))?\s*#*\s*$`)
	quoteRe   = regexp.MustCompile(`^>\s?(.*)$`)
	ruleRe    = regexp.MustCompile(`^([-*_])(?:\s*[-*_]){2,}$`)
)

// Parse returns the elements of markdown in source order.
func Parse(markdown string) []element.Element {
	elems, _ := ParseWithWarnings(markdown)
	return elems
}

// ParseWithWarnings is Parse plus the list of ambiguities it resolved.
func ParseWithWarnings(markdown string) ([]element.Element, []Warning) {
	p := &parser{}
	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if fence := fenceMarker(trimmed); fence != "" {
			if end := findFenceEnd(lines, i+1, fence); end > 0 {
				p.codeBlock(lines[i+1:end], strings.TrimSpace(trimmed[len(fence):]))
				i = end
				continue
			}
			// Unclosed fence: the marker line is ordinary text.
		}
		p.line(i+1, trimmed)
	}
	return p.elems, p.warnings
}

type parser struct {
	elems    []element.Element
	warnings []Warning
}

func (p *parser) codeBlock(body []string, info string) {
	code := strings.Trim(strings.Join(body, "\n"), "\n")
	if strings.TrimSpace(code) == "" {
		return
	}
	lang := ""
	if fields := strings.Fields(info); len(fields) > 0 {
		lang = strings.ToLower(fields[0])
	}
	if lang == "" {
		lang = DetectLanguage(code)
	}
	p.elems = append(p.elems, element.CodeBlock(code, lang))
}

func (p *parser) line(n int, s string) {
	if s == "" || ruleRe.MatchString(s) {
		return
	}

	if m := listRe.FindStringSubmatch(s); m != nil {
		p.container(n, element.TypeListItem, m[2], 0)
		return
	}
	if m := headingRe.FindStringSubmatch(s); m != nil {
		p.container(n, element.TypeHeading, m[2], len(m[1]))
		return
	}
	if m := quoteRe.FindStringSubmatch(s); m != nil {
		p.container(n, element.TypeQuote, m[1], 0)
		return
	}

	parts, _ := p.inline(n, s)
	p.elems = append(p.elems, parts...)
}

// container emits one heading, list item or quote whose content is the
// marker-free text of its body. Inline formatting inside the body is kept
// as children when at least one part is not plain text.
func (p *parser) container(n int, typ element.Type, body string, level int) {
	parts, plain := p.inline(n, body)
	if plain == "" {
		return
	}
	var children []element.Element
	for _, part := range parts {
		if part.Type != element.TypeText {
			children = parts
			break
		}
	}
	e := element.Element{Type: typ, Content: plain, Meta: element.Meta{Children: children}}
	if typ == element.TypeHeading {
		e = element.Heading(plain, level, children)
	}
	p.elems = append(p.elems, e)
}

func fenceMarker(s string) string {
	switch {
	case strings.HasPrefix(s, "```"):
		return "```"
	case strings.HasPrefix(s, "~~~"):
		return "~~~"
	}
	return ""
}

// findFenceEnd returns the index of the closing fence line, or -1.
func findFenceEnd(lines []string, from int, fence string) int {
	for j := from; j < len(lines); j++ {
		t := strings.TrimSpace(lines[j])
		if strings.HasPrefix(t, fence) && strings.Trim(t, fence[:1]) == "" {
			return j
		}
	}
	return -1
}
