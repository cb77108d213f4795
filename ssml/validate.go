package ssml

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

var (
	tagRe   = regexp.MustCompile(`<(/?)([A-Za-z][\w:.-]*)[^>]*?(/?)>`)
	anyTag  = regexp.MustCompile(`<[^>]*>`)
	spaceRe = regexp.MustCompile(`\s+`)
)

// Validate checks ssml for platform p and returns a pass flag with a
// human-readable report: the problems joined with "; ", or "Valid SSML".
// It never fails on malformed input.
func Validate(ssml string, p Platform) (bool, string) {
	errs := Problems(ssml, p)
	if len(errs) == 0 {
		return true, "Valid SSML"
	}
	return false, strings.Join(errs, "; ")
}

// Problems lists every defect Validate reports.
func Problems(ssml string, p Platform) []string {
	var errs []string
	if !strings.Contains(ssml, "<speak") {
		errs = append(errs, "missing <speak> root element")
	}
	if p == Azure {
		if !strings.Contains(ssml, AzureNamespace) {
			errs = append(errs, "Azure SSML requires xmlns=\""+AzureNamespace+"\"")
		}
		if !strings.Contains(ssml, "xml:lang") {
			errs = append(errs, "Azure SSML requires xml:lang")
		}
	}

	balance := tagBalance(ssml)
	errs = append(errs, balance...)

	// The tag walk reports balance problems more precisely; the XML parser
	// only adds what it alone can see (bad entities, stray '<', ...).
	if len(balance) == 0 && strings.Contains(ssml, "<") {
		if _, err := xmlquery.Parse(strings.NewReader(ssml)); err != nil {
			errs = append(errs, "XML is not well-formed: "+err.Error())
		}
	}
	return errs
}

// tagBalance walks the tags with a stack. A closing tag must match the
// innermost open tag; self-closing tags are not pushed.
func tagBalance(s string) []string {
	var errs []string
	var stack []string
	for _, m := range tagRe.FindAllStringSubmatch(s, -1) {
		closing, name, self := m[1] == "/", m[2], m[3] == "/"
		switch {
		case self:
		case !closing:
			stack = append(stack, name)
		case len(stack) == 0:
			errs = append(errs, fmt.Sprintf("unexpected closing tag </%s>", name))
		case stack[len(stack)-1] == name:
			stack = stack[:len(stack)-1]
		default:
			i := lastIndex(stack, name)
			if i < 0 {
				errs = append(errs, fmt.Sprintf("mismatched closing tag </%s>, expected </%s>", name, stack[len(stack)-1]))
				continue
			}
			for j := len(stack) - 1; j > i; j-- {
				errs = append(errs, fmt.Sprintf("unclosed tag <%s>", stack[j]))
			}
			stack = stack[:i]
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		errs = append(errs, fmt.Sprintf("unclosed tag <%s>", stack[i]))
	}
	return errs
}

func lastIndex(stack []string, name string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == name {
			return i
		}
	}
	return -1
}

// StripTags returns the spoken text of ssml with whitespace collapsed, for
// providers that take plain text. Malformed markup falls back to a regex
// strip.
func StripTags(ssml string) string {
	var text string
	if doc, err := xmlquery.Parse(strings.NewReader(ssml)); err == nil {
		text = doc.InnerText()
	} else {
		text = html.UnescapeString(anyTag.ReplaceAllString(ssml, " "))
	}
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
