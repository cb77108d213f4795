// Package normalize converts HTML, JSON, Markdown and plain text into the
// canonical Markdown-like text consumed by the parser.
//
// Detection is a one-shot decision: the Normalizer picks a Format once and
// dispatches to the converter for that variant. Downstream stages never see
// the original format.
//
// Usage:
//
//	n := normalize.New(nil)
//	md := n.ToMarkdown(raw, normalize.FormatAuto)
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// Format identifies an input document format.
type Format string

const (
	FormatAuto     Format = "auto"
	FormatHTML     Format = "html"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// ErrUnknownFormat is returned by ParseFormat for unrecognised names.
var ErrUnknownFormat = errors.New("normalize: unknown format")

// ParseFormat maps a user-supplied name to a Format. The empty string is auto.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return FormatAuto, nil
	case "html", "htm":
		return FormatHTML, nil
	case "json":
		return FormatJSON, nil
	case "markdown", "md", "text", "txt", "plain":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// FormatFromFilename returns the format implied by a file extension, or
// FormatAuto when the extension says nothing useful.
func FormatFromFilename(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return FormatHTML
	case ".json":
		return FormatJSON
	case ".md", ".markdown", ".txt", ".text":
		return FormatMarkdown
	default:
		return FormatAuto
	}
}

var (
	doctypeRe    = regexp.MustCompile(`(?i)<!doctype\s`)
	blockLevelRe = regexp.MustCompile(`(?i)<(html|head|body|div|p|h[1-6]|ul|ol|li|table|article|section|main|pre|blockquote|br|hr)(\s[^>]*)?/?>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Detect guesses the format of content: JSON first, then HTML, otherwise
// Markdown. Only objects and arrays count as JSON so that a bare "true" or
// "42" stays plain text.
func Detect(content string) Format {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return FormatMarkdown
	}
	if (trimmed[0] == '{' || trimmed[0] == '[') && json.Valid([]byte(trimmed)) {
		return FormatJSON
	}
	if doctypeRe.MatchString(trimmed) || blockLevelRe.MatchString(trimmed) {
		return FormatHTML
	}
	return FormatMarkdown
}

// Normalizer converts documents to canonical Markdown. It is safe for
// concurrent use.
type Normalizer struct {
	md     *converter.Converter
	policy *bluemonday.Policy
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger means slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
		policy: bluemonday.UGCPolicy(),
		logger: logger,
	}
}

var defaultNormalizer = New(nil)

// ToMarkdown converts content with the package default Normalizer.
func ToMarkdown(content string, hint Format) string {
	return defaultNormalizer.ToMarkdown(content, hint)
}

// ToMarkdown converts content to canonical Markdown. hint may be FormatAuto.
// It never fails: malformed HTML degrades to tag stripping and malformed
// JSON to a fenced code block.
func (n *Normalizer) ToMarkdown(content string, hint Format) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	format := hint
	if format == "" || format == FormatAuto {
		format = Detect(content)
	}

	var out string
	switch format {
	case FormatHTML:
		out = n.htmlToMarkdown(content)
	case FormatJSON:
		out = jsonToMarkdown(content)
	default:
		out = content
	}

	n.logger.Debug("normalize: converted", "format", format, "in_len", len(content), "out_len", len(out))
	return out
}

func collapseBlankLines(s string) string {
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}
