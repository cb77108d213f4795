// Package chunk splits large documents into pieces that can be processed
// independently and concatenated back into the exact original text.
//
// Cuts prefer structural boundaries, in order: before a heading, after a
// blank line, after a line, after a sentence, after a space. A cut never
// lands inside a fenced code block when another boundary is available, and
// never inside a multi-byte rune.
package chunk

import (
	"strings"
	"unicode/utf8"
)

// DefaultMaxChars is the chunk size used when Options.MaxChars is unset.
const DefaultMaxChars = 50000

// Options configures Split.
type Options struct {
	MaxChars int // maximum characters (runes) per chunk
}

func (o *Options) defaults() {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
}

// Chunk is one piece of a split document.
type Chunk struct {
	Index  int
	Text   string
	Offset int // byte offset of Text in the original document
}

// Split cuts text into chunks of at most opts.MaxChars characters. Text that
// already fits is returned as a single chunk.
func Split(text string, opts Options) []Chunk {
	opts.defaults()
	if utf8.RuneCountInString(text) <= opts.MaxChars {
		return []Chunk{{Index: 0, Text: text}}
	}

	fences := fenceRanges(text)
	var chunks []Chunk
	pos := 0
	for pos < len(text) {
		rest := text[pos:]
		if utf8.RuneCountInString(rest) <= opts.MaxChars {
			chunks = append(chunks, Chunk{Index: len(chunks), Text: rest, Offset: pos})
			break
		}
		window := rest[:runeOffset(rest, opts.MaxChars)]
		base := pos
		cut := bestCut(window, func(c int) bool { return !fences.contains(base + c) })
		chunks = append(chunks, Chunk{Index: len(chunks), Text: rest[:cut], Offset: pos})
		pos += cut
	}
	return chunks
}

// Join concatenates chunk texts in order.
func Join(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// boundary is a separator and the position of the cut relative to it.
type boundary struct {
	seps  []string
	after int // cut position inside the separator
}

var boundaries = []boundary{
	{seps: []string{"\n#"}, after: 1},
	{seps: []string{"\n\n"}, after: 2},
	{seps: []string{"\n"}, after: 1},
	{seps: []string{". ", "! ", "? "}, after: 2},
	{seps: []string{" ", "\t"}, after: 1},
}

// bestCut returns the byte length of the next chunk taken from window.
// Cuts closer to the start than a quarter of the window are ignored so
// chunks stay reasonably full.
func bestCut(window string, outsideFence func(int) bool) int {
	minCut := len(window) / 4
	for _, check := range []func(int) bool{outsideFence, func(int) bool { return true }} {
		for _, b := range boundaries {
			best := -1
			for _, sep := range b.seps {
				if c := lastCut(window, sep, b.after, minCut, check); c > best {
					best = c
				}
			}
			if best > 0 {
				return best
			}
		}
	}
	return len(window)
}

func lastCut(window, sep string, after, minCut int, ok func(int) bool) int {
	end := len(window)
	for {
		i := strings.LastIndex(window[:end], sep)
		if i < 0 {
			return -1
		}
		c := i + after
		if c < minCut || c == 0 {
			return -1
		}
		if ok(c) {
			return c
		}
		end = i
	}
}

// runeOffset returns the byte offset just past the n-th rune of s.
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// span is a half-open byte range.
type span struct{ start, end int }

type spans []span

// contains reports whether a cut at pos would split a fenced block.
func (ss spans) contains(pos int) bool {
	for _, s := range ss {
		if pos > s.start && pos < s.end {
			return true
		}
	}
	return false
}

// fenceRanges finds ``` and ~~~ fenced blocks. An unclosed fence runs to
// the end of the text.
func fenceRanges(text string) spans {
	var out spans
	open := -1
	var marker string
	lineStart := 0
	for lineStart < len(text) {
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		next := len(text)
		if lineEnd >= 0 {
			next = lineStart + lineEnd + 1
		}
		line := strings.TrimSpace(text[lineStart:next])
		switch {
		case open < 0 && (strings.HasPrefix(line, "```") || strings.HasPrefix(line, "~~~")):
			open, marker = lineStart, line[:3]
		case open >= 0 && strings.HasPrefix(line, marker):
			out = append(out, span{open, next})
			open = -1
		}
		lineStart = next
	}
	if open >= 0 {
		out = append(out, span{open, len(text)})
	}
	return out
}
