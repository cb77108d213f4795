package parse

import "regexp"

// languageHints are tried in order; the first match wins. The Go and C
// markers are specific enough to be checked before the looser Python and
// JavaScript keywords.
var languageHints = []struct {
	lang string
	re   *regexp.Regexp
}{
	{"go", regexp.MustCompile(`(?m)^package\s+\w+\s*$`)},
	{"c", regexp.MustCompile(`#include\b`)},
	{"python", regexp.MustCompile(`(?m)^\s*(def\s+\w+|import\s+\w+|from\s+\S+\s+import\b)`)},
	{"javascript", regexp.MustCompile(`\b(function|const)\b`)},
	{"rust", regexp.MustCompile(`\bfn\s+\w+|\blet\s+mut\b`)},
}

// DetectLanguage guesses the programming language of a code block from a
// few keywords. It returns "unknown" when nothing matches.
func DetectLanguage(code string) string {
	for _, h := range languageHints {
		if h.re.MatchString(code) {
			return h.lang
		}
	}
	return "unknown"
}
