package speechmd

import (
	"testing"

	"github.com/hazyhaar/speakdown/element"
	"github.com/hazyhaar/speakdown/emotion"
)

func ann(e emotion.Emotion) emotion.Annotation { return emotion.Annotation{Emotion: e} }

func TestConvert_Templates(t *testing.T) {
	tests := []struct {
		name string
		e    element.Element
		em   emotion.Emotion
		want string
	}{
		{"h1", element.Heading("Intro", 1, nil), emotion.Excited, "(excited)[Intro] [1s]"},
		{"h2", element.Heading("Part", 2, nil), emotion.Normal, "(normal)[Part] [0.8s]"},
		{"bold", element.Element{Type: element.TypeBold, Content: "loud"}, emotion.Excited, "**loud**"},
		{"italic", element.Element{Type: element.TypeItalic, Content: "soft"}, emotion.Soft, "(soft)[soft]"},
		{"code", element.Code("x"), emotion.Monotone, "(monotone)[x]"},
		{"link", element.Link("docs", "https://x"), emotion.Normal, "(normal)[docs] [250ms]"},
		{"code block", element.CodeBlock("a = 1", "python"), emotion.Monotone, "(monotone)[a = 1] [1s]"},
		{"list", element.Element{Type: element.TypeListItem, Content: "one"}, emotion.Normal, "one [500ms]"},
		{"quote", element.Element{Type: element.TypeQuote, Content: "said"}, emotion.Soft, "(soft)[said] [500ms]"},
		{"text", element.Text("raw"), emotion.Normal, "raw"},
	}
	for _, tt := range tests {
		got := Convert([]element.Element{tt.e}, []emotion.Annotation{ann(tt.em)})
		if got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConvert_Spacing(t *testing.T) {
	// WHAT: Separators between headings, lists, paragraphs and inline runs.
	// WHY: Line structure becomes audible pacing after rendering.
	elems := []element.Element{
		element.Heading("T", 1, nil),
		element.Text("This is"),
		{Type: element.TypeBold, Content: "bold"},
		element.Text("text."),
		element.Text("Next paragraph."),
		{Type: element.TypeListItem, Content: "a"},
		{Type: element.TypeListItem, Content: "b"},
		element.Text("after"),
	}
	anns := make([]emotion.Annotation, len(elems))
	for i := range anns {
		anns[i] = ann(emotion.Normal)
	}
	want := "(normal)[T] [1s]\n\nThis is **bold** text.\n\nNext paragraph.\n\na [500ms]\nb [500ms]\n\nafter"
	if got := Convert(elems, anns); got != want {
		t.Fatalf("got:\n%q\nwant:\n%q", got, want)
	}
}

func TestConvert_EscapesContent(t *testing.T) {
	got := Convert([]element.Element{element.Text(`see [500ms] and a*b \ c`)}, nil)
	want := `see \[500ms\] and a\*b \\ c`
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestConvert_MissingAnnotations(t *testing.T) {
	got := Convert([]element.Element{element.Heading("X", 3, nil)}, nil)
	if got != "(normal)[X] [0.8s]" {
		t.Fatalf("got %q", got)
	}
	if Convert(nil, nil) != "" {
		t.Fatal("empty input should render empty")
	}
}
