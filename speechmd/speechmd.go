// Package speechmd serialises annotated elements into speech markdown, the
// platform-neutral intermediate syntax read by the SSML renderer:
//
//	(excited)[Welcome] [1s]
//
//	Plain text with **bold** words and a (normal)[link] [250ms]
//
// Emotion spans are (label)[text], pauses are [Ns] or [Nms] and emphasis is
// **text**. Backslash, brackets and asterisks inside element content are
// backslash-escaped so content can never be mistaken for a marker.
package speechmd

import (
	"strings"

	"github.com/hazyhaar/speakdown/element"
	"github.com/hazyhaar/speakdown/emotion"
)

var escaper = strings.NewReplacer(`\`, `\\`, `[`, `\[`, `]`, `\]`, `*`, `\*`)

// Escape backslash-escapes the characters that carry meaning in speech
// markdown.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Convert renders elems with their annotations. A missing annotation (when
// anns is shorter than elems) renders with the normal emotion.
func Convert(elems []element.Element, anns []emotion.Annotation) string {
	var sb strings.Builder
	for i, e := range elems {
		if i > 0 {
			sb.WriteString(separator(elems[i-1].Type, e.Type))
		}
		em := emotion.Normal
		if i < len(anns) {
			em = anns[i].Emotion
		}
		writeElement(&sb, e, em)
	}
	return sb.String()
}

func writeElement(sb *strings.Builder, e element.Element, em emotion.Emotion) {
	c := Escape(e.Content)
	switch e.Type {
	case element.TypeHeading:
		span(sb, em, c)
		if e.Level == 1 {
			sb.WriteString(" [1s]")
		} else {
			sb.WriteString(" [0.8s]")
		}
	case element.TypeBold:
		sb.WriteString("**")
		sb.WriteString(c)
		sb.WriteString("**")
	case element.TypeItalic, element.TypeCode:
		span(sb, em, c)
	case element.TypeLink:
		span(sb, em, c)
		sb.WriteString(" [250ms]")
	case element.TypeCodeBlock:
		span(sb, em, c)
		sb.WriteString(" [1s]")
	case element.TypeListItem:
		sb.WriteString(c)
		sb.WriteString(" [500ms]")
	case element.TypeQuote:
		span(sb, em, c)
		sb.WriteString(" [500ms]")
	default:
		sb.WriteString(c)
	}
}

func span(sb *strings.Builder, em emotion.Emotion, content string) {
	sb.WriteByte('(')
	sb.WriteString(string(em))
	sb.WriteString(")[")
	sb.WriteString(content)
	sb.WriteByte(']')
}

// separator returns the whitespace between two consecutive elements.
func separator(prev, cur element.Type) string {
	switch {
	case isBlock(prev) || isBlock(cur):
		return "\n\n"
	case prev == element.TypeListItem && cur == element.TypeListItem:
		return "\n"
	case prev == element.TypeListItem || cur == element.TypeListItem:
		return "\n\n"
	case prev == element.TypeText && cur == element.TypeText:
		return "\n\n"
	}
	return " "
}

func isBlock(t element.Type) bool {
	return t == element.TypeHeading || t == element.TypeCodeBlock || t == element.TypeQuote
}
