package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// htmlRule is one tag substitution of the rule-based converter.
type htmlRule struct {
	re   *regexp.Regexp
	repl func(m []string) string
}

// htmlRules are applied in order. Block code must run before inline code
// and headings before paragraphs.
var htmlRules = []htmlRule{
	{regexp.MustCompile(`(?is)<h([1-6])[^>]*>(.*?)</h[1-6]\s*>`), func(m []string) string {
		return "\n\n" + strings.Repeat("#", int(m[1][0]-'0')) + " " + strings.TrimSpace(m[2]) + "\n\n"
	}},
	{regexp.MustCompile(`(?is)<(?:b|strong)(?:\s[^>]*)?>(.*?)</(?:b|strong)\s*>`), func(m []string) string {
		return "**" + m[1] + "**"
	}},
	{regexp.MustCompile(`(?is)<(?:i|em)(?:\s[^>]*)?>(.*?)</(?:i|em)\s*>`), func(m []string) string {
		return "*" + m[1] + "*"
	}},
	{regexp.MustCompile(`(?is)<a\s[^>]*?href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a\s*>`), func(m []string) string {
		return "[" + strings.TrimSpace(m[2]) + "](" + m[1] + ")"
	}},
	{regexp.MustCompile(`(?is)<li(?:\s[^>]*)?>(.*?)</li\s*>`), func(m []string) string {
		return "\n- " + strings.TrimSpace(m[1]) + "\n"
	}},
	{regexp.MustCompile(`(?is)<pre(?:\s[^>]*)?>\s*(?:<code[^>]*>)?(.*?)(?:</code\s*>)?\s*</pre\s*>`), func(m []string) string {
		return "\n\n```\n" + m[1] + "\n```\n\n"
	}},
	{regexp.MustCompile(`(?is)<code(?:\s[^>]*)?>(.*?)</code\s*>`), func(m []string) string {
		return "`" + m[1] + "`"
	}},
	{regexp.MustCompile(`(?is)<br\s*/?>`), func([]string) string { return "\n" }},
	{regexp.MustCompile(`(?is)</?p(?:\s[^>]*)?>`), func([]string) string { return "\n\n" }},
}

// htmlToMarkdown sanitises the document and converts it with the
// html-to-markdown engine, falling back to the substitution rules when the
// engine fails or produces nothing.
func (n *Normalizer) htmlToMarkdown(content string) string {
	clean := n.policy.Sanitize(content)
	out, err := n.md.ConvertString(clean)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			n.logger.Debug("normalize: html converter failed, using rules", "error", err)
		}
		return HTMLRulesToMarkdown(content)
	}
	// Backslash escapes are kept; the parser reads them as literals.
	return collapseBlankLines(out)
}

// HTMLRulesToMarkdown converts HTML with the fixed substitution rules, then
// strips residual tags and collapses runs of blank lines.
func HTMLRulesToMarkdown(content string) string {
	out := content
	for _, r := range htmlRules {
		out = r.re.ReplaceAllStringFunc(out, func(s string) string {
			return r.repl(r.re.FindStringSubmatch(s))
		})
	}
	return collapseBlankLines(stripTags(out))
}

// stripTags drops every remaining tag, skips script and style bodies and
// decodes entities in the surviving text.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var sb strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			if skip == 0 {
				sb.WriteString(z.Token().Data)
			}
		case html.StartTagToken:
			if isHiddenBody(z.Token().DataAtom) {
				skip++
			}
		case html.EndTagToken:
			if isHiddenBody(z.Token().DataAtom) && skip > 0 {
				skip--
			}
		}
	}
}

func isHiddenBody(a atom.Atom) bool {
	switch a {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}
