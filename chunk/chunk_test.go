package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func checkChunks(t *testing.T, text string, chunks []Chunk, max int) {
	t.Helper()
	if got := Join(chunks); got != text {
		t.Fatalf("join mismatch: got %d bytes, want %d", len(got), len(text))
	}
	offset := 0
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk[%d]: index=%d", i, c.Index)
		}
		if c.Offset != offset {
			t.Errorf("chunk[%d]: offset=%d, want %d", i, c.Offset, offset)
		}
		if n := utf8.RuneCountInString(c.Text); n > max {
			t.Errorf("chunk[%d]: %d chars > %d max", i, n, max)
		}
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk[%d]: split a rune", i)
		}
		offset += len(c.Text)
	}
}

func TestSplit_ShortText(t *testing.T) {
	text := "Hello world this is a short text."
	chunks := Split(text, Options{MaxChars: 512})
	if len(chunks) != 1 {
		t.Fatalf("split short: got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("text: got %q, want %q", chunks[0].Text, text)
	}
}

func TestSplit_Empty(t *testing.T) {
	chunks := Split("", Options{})
	if len(chunks) != 1 || chunks[0].Text != "" {
		t.Errorf("split empty: got %v, want one empty chunk", chunks)
	}
}

func TestSplit_LongText(t *testing.T) {
	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks := Split(text, Options{MaxChars: 100})
	if len(chunks) < 9 {
		t.Fatalf("split long: got %d chunks, want >= 9", len(chunks))
	}
	checkChunks(t, text, chunks, 100)
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, " ") {
			t.Errorf("chunk[%d] should end on a space: %q", i, c.Text)
		}
	}
}

func TestSplit_ParagraphAware(t *testing.T) {
	para1 := strings.TrimSpace(strings.Repeat("alpha ", 30))
	para2 := strings.TrimSpace(strings.Repeat("beta ", 30))
	para3 := strings.TrimSpace(strings.Repeat("gamma ", 30))
	text := para1 + "\n\n" + para2 + "\n\n" + para3

	chunks := Split(text, Options{MaxChars: 200})
	checkChunks(t, text, chunks, 200)
	if chunks[0].Text != para1+"\n\n" {
		t.Errorf("chunk[0] should be the first paragraph, got %q", chunks[0].Text)
	}
}

func TestSplit_PrefersHeadings(t *testing.T) {
	// WHAT: A heading inside the window wins over later paragraph breaks.
	// WHY: Sections are the most natural unit to synthesise separately.
	text := strings.Repeat("intro text. ", 10) + "\n# Part two\n" + strings.Repeat("body. ", 5) + "\n\n" + strings.Repeat("more. ", 40)
	chunks := Split(text, Options{MaxChars: 200})
	checkChunks(t, text, chunks, 200)
	if !strings.HasPrefix(chunks[1].Text, "# Part two") {
		t.Errorf("chunk[1] should start at the heading, got %q", chunks[1].Text[:20])
	}
}

func TestSplit_AvoidsFences(t *testing.T) {
	code := "```\n" + strings.Repeat("x = 1\n", 20) + "```\n"
	text := strings.Repeat("lead. ", 10) + "\n" + code + "tail"
	fenceStart := strings.Index(text, "```")
	fenceEnd := strings.LastIndex(text, "```") + 3

	chunks := Split(text, Options{MaxChars: 160})
	checkChunks(t, text, chunks, 160)
	for _, c := range chunks[1:] {
		if c.Offset > fenceStart && c.Offset < fenceEnd {
			t.Errorf("cut at %d falls inside fence [%d,%d)", c.Offset, fenceStart, fenceEnd)
		}
	}
}

func TestSplit_HardCutIsRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 250)
	chunks := Split(text, Options{MaxChars: 100})
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	checkChunks(t, text, chunks, 100)
}

func TestSplit_Defaults(t *testing.T) {
	text := strings.Repeat("a", DefaultMaxChars)
	if n := len(Split(text, Options{})); n != 1 {
		t.Fatalf("text at the default limit split into %d chunks", n)
	}
}
