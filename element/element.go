// Package element defines the semantic element model shared by every stage
// of the speech pipeline.
//
// An Element is one parsed unit of content (a heading, a bold span, a code
// block...). Elements are created by the parser, never mutated afterwards,
// and serialised to JSON by the cache using the shape
//
//	{"type": "heading", "content": "Intro", "level": 1, "metadata": {...}}
package element

// Type identifies the kind of a semantic element.
type Type string

const (
	TypeHeading   Type = "heading"
	TypeBold      Type = "bold"
	TypeItalic    Type = "italic"
	TypeCode      Type = "code"
	TypeCodeBlock Type = "code_block"
	TypeListItem  Type = "list_item"
	TypeLink      Type = "link"
	TypeText      Type = "text"
	TypeQuote     Type = "quote"
)

// Types returns every known element type in declaration order.
func Types() []Type {
	return []Type{
		TypeHeading, TypeBold, TypeItalic, TypeCode, TypeCodeBlock,
		TypeListItem, TypeLink, TypeText, TypeQuote,
	}
}

// Valid reports whether t is a known element type.
func (t Type) Valid() bool {
	for _, k := range Types() {
		if k == t {
			return true
		}
	}
	return false
}

// Element is one parsed unit of document content.
//
// Content never carries markup syntax. Level is 1-6 for headings and 0 for
// every other type.
type Element struct {
	Type    Type
	Content string
	Level   int
	Meta    Meta
}

// Meta carries the per-type extras of an element. At most one of Code and
// Link is set; Children holds the inline elements of a formatted container
// (a heading or list item with bold text, for instance). Extra is the
// forward-compatible fallback for keys no variant knows about.
type Meta struct {
	Code     *CodeMeta
	Link     *LinkMeta
	Children []Element
	Extra    map[string]string
}

// CodeMeta describes a code span or fenced code block.
type CodeMeta struct {
	Language string
}

// LinkMeta describes a hyperlink.
type LinkMeta struct {
	URL string
}

// Heading builds a heading element. level is clamped to 1-6.
func Heading(content string, level int, children []Element) Element {
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}
	return Element{Type: TypeHeading, Content: content, Level: level, Meta: Meta{Children: children}}
}

// Text builds a plain text element.
func Text(content string) Element {
	return Element{Type: TypeText, Content: content}
}

// Code builds an inline code element.
func Code(content string) Element {
	return Element{Type: TypeCode, Content: content}
}

// CodeBlock builds a fenced code block element tagged with its language.
func CodeBlock(content, language string) Element {
	return Element{Type: TypeCodeBlock, Content: content, Meta: Meta{Code: &CodeMeta{Language: language}}}
}

// Link builds a hyperlink element.
func Link(text, url string) Element {
	return Element{Type: TypeLink, Content: text, Meta: Meta{Link: &LinkMeta{URL: url}}}
}

// IsZero reports whether m carries no data.
func (m Meta) IsZero() bool {
	return m.Code == nil && m.Link == nil && len(m.Children) == 0 && len(m.Extra) == 0
}

// Language returns the code language or "" when the element is not code.
func (e Element) Language() string {
	if e.Meta.Code == nil {
		return ""
	}
	return e.Meta.Code.Language
}

// URL returns the link target or "" when the element is not a link.
func (e Element) URL() string {
	if e.Meta.Link == nil {
		return ""
	}
	return e.Meta.Link.URL
}
