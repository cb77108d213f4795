package ssml

import (
	"errors"
	"strings"
	"testing"
)

func TestConvert_AzureBreak(t *testing.T) {
	// WHAT: Plain speech markdown with a pause marker on Azure.
	// WHY: Azure rejects documents without its namespace and language.
	out := Convert("Hello [500ms] this is a test", Azure)
	if !strings.Contains(out, `<speak version="1.0" xmlns="`+AzureNamespace+`" xml:lang="en-US">`) {
		t.Errorf("missing Azure root: %s", out)
	}
	if !strings.Contains(out, `<break time="500ms"/>`) {
		t.Errorf("missing break: %s", out)
	}
	if ok, msg := Validate(out, Azure); !ok {
		t.Errorf("invalid: %s", msg)
	}
}

func TestBreakUnits(t *testing.T) {
	tests := []struct {
		p    Platform
		in   string
		want string
	}{
		{Azure, "[500ms]", `<break time="500ms"/>`},
		{Azure, "[1s]", `<break time="1s"/>`},
		{Azure, "[0.8s]", `<break time="800ms"/>`},
		{Amazon, "[250ms]", `<break time="250ms"/>`},
		{Amazon, "[1500ms]", `<break time="1.5s"/>`},
		{Google, "[500ms]", `<break time="0.5s"/>`},
		{Google, "[1s]", `<break time="1s"/>`},
		{Generic, "[0.8s]", `<break time="800ms"/>`},
	}
	for _, tt := range tests {
		if out := Convert(tt.in, tt.p); !strings.Contains(out, tt.want) {
			t.Errorf("%s %s: got %s, want %s", tt.p, tt.in, out, tt.want)
		}
	}
}

func TestConvert_EmotionAndEmphasis(t *testing.T) {
	out := Convert("(excited)[Welcome] [1s] a **big** day", Amazon)
	want := `<speak><prosody rate="fast" pitch="high" volume="loud">Welcome</prosody> <break time="1s"/> a <emphasis level="strong">big</emphasis> day</speak>`
	if out != want {
		t.Fatalf("got  %s\nwant %s", out, want)
	}

	generic := Convert("**big**", Generic)
	if generic != "<speak><emphasis>big</emphasis></speak>" {
		t.Errorf("generic emphasis: %s", generic)
	}
}

func TestConvert_UnknownEmotionIsNormal(t *testing.T) {
	out := Convert("(grumpy)[hi]", Google)
	if !strings.Contains(out, `<prosody rate="100%" pitch="+0st" volume="medium">hi</prosody>`) {
		t.Fatalf("got %s", out)
	}
}

func TestConvert_EscapesAndUnescapes(t *testing.T) {
	// WHAT: XML specials and speech-markdown escapes in content.
	// WHY: Spoken text must never break the document or trigger markers.
	out := Convert(`a < b & c \[500ms\] (soft)[x \] y] 2\*3`, Generic)
	if strings.Contains(out, "<break") {
		t.Errorf("escaped marker became a break: %s", out)
	}
	if !strings.Contains(out, "a &lt; b &amp; c [500ms]") {
		t.Errorf("escaping: %s", out)
	}
	if !strings.Contains(out, ">x ] y</prosody>") || !strings.Contains(out, "2*3") {
		t.Errorf("unescaping: %s", out)
	}
	if ok, msg := Validate(out, Generic); !ok {
		t.Errorf("invalid: %s", msg)
	}
}

func TestConvert_AzureVoiceAndLanguage(t *testing.T) {
	out := Render("hi", Azure, Options{Language: "fr-FR", Voice: "fr-FR-DeniseNeural"})
	if !strings.Contains(out, `xml:lang="fr-FR"`) || !strings.Contains(out, `<voice name="fr-FR-DeniseNeural">hi</voice>`) {
		t.Fatalf("got %s", out)
	}
}

func TestConvert_AllPlatformsValid(t *testing.T) {
	md := "(excited)[Intro] [1s]\n\nSome **bold** and (soft)[quiet] text.\n\none [500ms]\ntwo [500ms]\n\n(monotone)[x := 1] [1s]"
	for _, p := range Platforms() {
		out := Convert(md, p)
		if ok, msg := Validate(out, p); !ok {
			t.Errorf("%s: %s\n%s", p, msg, out)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		p    Platform
		ok   bool
		msg  string
	}{
		{"valid", "<speak>hi<break time=\"1s\"/></speak>", Generic, true, "Valid SSML"},
		{"mismatch", "<speak><prosody>hi</emphasis></prosody></speak>", Generic, false, "mismatched closing tag </emphasis>, expected </prosody>"},
		{"unclosed", "<speak><emphasis>hi</speak>", Generic, false, "unclosed"},
		{"stray close", "<speak>hi</speak></voice>", Generic, false, "unexpected closing tag </voice>"},
		{"no namespace", "<speak xml:lang=\"en-US\">hi</speak>", Azure, false, "requires xmlns"},
		{"no lang", "<speak xmlns=\"" + AzureNamespace + "\">hi</speak>", Azure, false, "requires xml:lang"},
		{"no root", "hello", Generic, false, "missing <speak>"},
		{"bad entity", "<speak>a & b</speak>", Generic, false, "not well-formed"},
	}
	for _, tt := range tests {
		ok, msg := Validate(tt.in, tt.p)
		if ok != tt.ok || !strings.Contains(msg, tt.msg) {
			t.Errorf("%s: got (%v, %q), want (%v, ~%q)", tt.name, ok, msg, tt.ok, tt.msg)
		}
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	_, msg := Validate("<speak><a><b>", Azure)
	if strings.Count(msg, "; ") < 3 {
		t.Fatalf("expected several errors joined by '; ', got %q", msg)
	}
}

func TestStripTags(t *testing.T) {
	out := Convert("(excited)[Hello] [500ms] big **world** &amp; more", Azure)
	if got := StripTags(out); got != "Hello big world &amp; more" {
		t.Errorf("got %q", got)
	}
	if got := StripTags("<speak>broken <b>text</speak>"); got != "broken text" {
		t.Errorf("fallback: got %q", got)
	}
}

func TestParsePlatform(t *testing.T) {
	for _, in := range []string{"Azure", " google ", "AMAZON", "generic"} {
		if _, err := ParsePlatform(in); err != nil {
			t.Errorf("%q: %v", in, err)
		}
	}
	if p, _ := ParsePlatform(""); p != Generic {
		t.Errorf("empty = %s", p)
	}
	if _, err := ParsePlatform("watson"); !errors.Is(err, ErrUnknownPlatform) {
		t.Errorf("err = %v", err)
	}
}
