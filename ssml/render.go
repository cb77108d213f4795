package ssml

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	emotionRe  = regexp.MustCompile(`\((\w+)\)\[((?:\\.|[^\\\]])*)\]`)
	timingRe   = regexp.MustCompile(`\[(\d+(?:\.\d+)?)(ms|s)\]`)
	emphasisRe = regexp.MustCompile(`\*\*((?:\\.|[^\\*])+)\*\*`)
	unescapeRe = regexp.MustCompile(`\\([\\\[\]*])`)

	xmlEscaper  = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// Options tunes the root element.
type Options struct {
	// Language is the xml:lang of the Azure root. Default "en-US".
	Language string
	// Voice, when set, wraps Azure output in <voice name="...">.
	Voice string
}

// Convert renders speech markdown for p with default options.
func Convert(text string, p Platform) string {
	return Render(text, p, Options{})
}

// Render converts speech markdown into SSML for p. Text is XML-escaped
// first, then emotion spans, pause markers and emphasis are substituted in
// that order and the result is wrapped in the platform root. Unknown
// platforms render as Generic.
func Render(text string, p Platform, opts Options) string {
	if _, ok := prosodyTable[p]; !ok {
		p = Generic
	}
	out := xmlEscaper.Replace(text)

	out = emotionRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := emotionRe.FindStringSubmatch(m)
		pr := lookupProsody(p, sub[1])
		return fmt.Sprintf(`<prosody rate="%s" pitch="%s" volume="%s">%s</prosody>`, pr.rate, pr.pitch, pr.volume, sub[2])
	})

	out = timingRe.ReplaceAllStringFunc(out, func(m string) string {
		sub := timingRe.FindStringSubmatch(m)
		return breakTag(p, toSeconds(sub[1], sub[2]))
	})

	emphasisOpen := `<emphasis level="strong">`
	if p == Generic {
		emphasisOpen = `<emphasis>`
	}
	out = emphasisRe.ReplaceAllString(out, emphasisOpen+"${1}</emphasis>")

	out = unescapeRe.ReplaceAllString(out, "$1")
	return wrap(out, p, opts)
}

func toSeconds(value, unit string) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	if unit == "ms" {
		return v / 1000
	}
	return v
}

// breakTag emits a pause in the unit the platform prefers: Google always
// takes seconds, the others take milliseconds below one second.
func breakTag(p Platform, seconds float64) string {
	if p != Google && seconds < 1 {
		return fmt.Sprintf(`<break time="%dms"/>`, int(math.Round(seconds*1000)))
	}
	return `<break time="` + strconv.FormatFloat(seconds, 'f', -1, 64) + `s"/>`
}

func wrap(body string, p Platform, opts Options) string {
	if p != Azure {
		return "<speak>" + body + "</speak>"
	}
	lang := opts.Language
	if lang == "" {
		lang = "en-US"
	}
	if opts.Voice != "" {
		body = `<voice name="` + attrEscaper.Replace(opts.Voice) + `">` + body + "</voice>"
	}
	return `<speak version="1.0" xmlns="` + AzureNamespace + `" xml:lang="` + attrEscaper.Replace(lang) + `">` + body + "</speak>"
}
