package docpipe

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minPrintableRatio is the share of printable runes below which input is
// treated as binary.
const minPrintableRatio = 0.85

// InputQuality summarises how speakable an input blob is.
type InputQuality struct {
	Runes          int     `json:"runes"`
	ValidUTF8      bool    `json:"valid_utf8"`
	PrintableRatio float64 `json:"printable_ratio"`
	WordlikeRatio  float64 `json:"wordlike_ratio"`
}

// Speakable reports whether the input looks like text rather than binary.
func (q InputQuality) Speakable() bool {
	return q.ValidUTF8 && q.PrintableRatio >= minPrintableRatio
}

func assessInput(text string) InputQuality {
	return InputQuality{
		Runes:          utf8.RuneCountInString(text),
		ValidUTF8:      utf8.ValidString(text),
		PrintableRatio: computePrintableRatio(text),
		WordlikeRatio:  computeWordlikeRatio(text),
	}
}

// computePrintableRatio returns the ratio of printable characters in text.
// Private-use runes, U+FFFD and control characters other than whitespace
// count as garbage.
func computePrintableRatio(text string) float64 {
	total, printable := 0, 0
	for _, r := range text {
		total++
		if isGarbageRune(r) {
			continue
		}
		if unicode.IsPrint(r) || r == '\n' || r == '\r' || r == '\t' {
			printable++
		}
	}
	if total == 0 {
		return 1.0
	}
	return float64(printable) / float64(total)
}

func isGarbageRune(r rune) bool {
	switch {
	case r >= 0xE000 && r <= 0xF8FF:
		return true
	case r == utf8.RuneError:
		return true
	case r < 0x20 && r != '\n' && r != '\r' && r != '\t':
		return true
	}
	return false
}

// computeWordlikeRatio returns the share of whitespace-separated tokens
// that are 2 to 15 runes long.
func computeWordlikeRatio(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0
	}
	wordlike := 0
	for _, f := range fields {
		if n := utf8.RuneCountInString(f); n >= 2 && n <= 15 {
			wordlike++
		}
	}
	return float64(wordlike) / float64(len(fields))
}

// firstLine returns the first non-empty line of text, capped at 200 bytes
// on a rune boundary.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(line) > 200 {
			cut := 200
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			line = line[:cut]
		}
		return line
	}
	return ""
}
