// Package emotion classifies a document into an archetype and annotates each
// element with an emotion, an intensity and pause timing.
//
// All keyword tables and patterns live in an immutable Rules value built
// once by DefaultRules and shared by reference; nothing here mutates global
// state, so an Annotator is safe for concurrent use.
package emotion

import (
	"regexp"

	"github.com/hazyhaar/speakdown/element"
)

// Emotion is a speaking style.
type Emotion string

const (
	Excited  Emotion = "excited"
	Soft     Emotion = "soft"
	Monotone Emotion = "monotone"
	Normal   Emotion = "normal"
)

// DocType is the archetype of a whole document.
type DocType string

const (
	Technical DocType = "technical"
	Marketing DocType = "marketing"
	Narrative DocType = "narrative"
	Tutorial  DocType = "tutorial"
)

// DocTypes lists the archetypes in tie-break order.
func DocTypes() []DocType {
	return []DocType{Technical, Marketing, Narrative, Tutorial}
}

// Timing is the silence around an element, in seconds.
type Timing struct {
	PauseBefore float64 `json:"pause_before"`
	PauseAfter  float64 `json:"pause_after"`
}

// Style is a base emotion and its intensity.
type Style struct {
	Emotion   Emotion
	Intensity float64
}

// Profile tunes the archetype pass.
type Profile struct {
	BaseIntensity  float64
	EmphasisBoost  float64
	PauseAfterMult float64
}

// weightedPattern scores an archetype once per match.
type weightedPattern struct {
	re *regexp.Regexp
	// caseSensitive patterns run against the original text, the others
	// against the lower-cased text.
	caseSensitive bool
}

// Rules holds every table the classifier and annotator consult.
type Rules struct {
	Keywords map[DocType][]string
	Patterns map[DocType][]weightedPattern
	Profiles map[DocType]Profile

	BaseStyles  map[element.Type]Style
	BaseTimings map[element.Type]Timing

	ExcitedWords  []string
	EmphasisWords []string
	JargonWords   []string
}

// DefaultRules builds the standard rule set.
func DefaultRules() *Rules {
	return &Rules{
		Keywords: map[DocType][]string{
			Technical: {
				"api", "function", "method", "class", "variable", "algorithm", "database",
				"server", "configuration", "parameter", "implementation", "compile",
				"runtime", "library", "framework", "endpoint", "query", "deploy", "debug",
			},
			Marketing: {
				"amazing", "revolutionary", "best", "free", "offer", "discount", "buy",
				"limited", "exclusive", "save", "incredible", "guaranteed", "premium",
				"deal", "customers", "today only",
			},
			Narrative: {
				"once upon", "story", "remembered", "felt", "walked", "suddenly",
				"journey", "dream", "whispered", "heart", "night", "morning", "smiled",
			},
			Tutorial: {
				"step", "first", "next", "then", "finally", "how to", "guide", "tutorial",
				"learn", "example", "follow", "install", "click", "lesson",
			},
		},
		Patterns: map[DocType][]weightedPattern{
			Technical: {
				{re: regexp.MustCompile("`[^`]+`")},
				{re: regexp.MustCompile(`\b\w+\(\)`)},
				{re: regexp.MustCompile(`\b[a-z]+_[a-z_]+\b`)},
				{re: regexp.MustCompile(`\b[A-Z][A-Z0-9]*_[A-Z0-9_]+\b`), caseSensitive: true},
				{re: regexp.MustCompile(`\bv?\d+\.\d+\.\d+\b`)},
			},
			Marketing: {
				{re: regexp.MustCompile(`!{2,}`)},
				{re: regexp.MustCompile(`\d+\s*%\s*off\b`)},
				{re: regexp.MustCompile(`\$\d+`)},
				{re: regexp.MustCompile(`\b(act|order|sign up|buy) now\b`)},
			},
			Narrative: {
				{re: regexp.MustCompile(`"[^"]{2,}"`)},
				{re: regexp.MustCompile(`\b(he|she|they|i) (said|asked|replied|whispered)\b`)},
				{re: regexp.MustCompile(`\bonce upon a time\b`)},
			},
			Tutorial: {
				{re: regexp.MustCompile(`\bstep\s+\d+`)},
				{re: regexp.MustCompile(`(?m)^\d+\.\s`)},
				{re: regexp.MustCompile(`\bhow to\b`)},
				{re: regexp.MustCompile(`\byou (will|should|can|need to)\b`)},
			},
		},
		Profiles: map[DocType]Profile{
			Technical: {BaseIntensity: 0.4, EmphasisBoost: 0.0, PauseAfterMult: 1.2},
			Marketing: {BaseIntensity: 0.7, EmphasisBoost: 0.2, PauseAfterMult: 0.8},
			Narrative: {BaseIntensity: 0.5, EmphasisBoost: 0.1, PauseAfterMult: 1.0},
			Tutorial:  {BaseIntensity: 0.6, EmphasisBoost: 0.1, PauseAfterMult: 1.0},
		},
		BaseStyles: map[element.Type]Style{
			element.TypeHeading:   {Excited, 0.8},
			element.TypeBold:      {Excited, 0.5},
			element.TypeItalic:    {Soft, 0.4},
			element.TypeCode:      {Monotone, 0.3},
			element.TypeCodeBlock: {Monotone, 0.3},
		},
		BaseTimings: map[element.Type]Timing{
			element.TypeHeading:   {0.5, 0.8},
			element.TypeBold:      {0.1, 0.2},
			element.TypeItalic:    {0.1, 0.1},
			element.TypeCode:      {0.2, 0.2},
			element.TypeCodeBlock: {0.5, 0.8},
			element.TypeListItem:  {0.2, 0.3},
			element.TypeLink:      {0.1, 0.25},
			element.TypeText:      {0.0, 0.2},
			element.TypeQuote:     {0.3, 0.5},
		},
		ExcitedWords: []string{
			"amazing", "incredible", "best", "greatest", "fantastic", "awesome",
			"outstanding", "extraordinary", "revolutionary", "brilliant",
		},
		EmphasisWords: []string{
			"warning", "important", "critical", "danger", "caution", "must", "never", "always",
		},
		JargonWords: []string{
			"api", "function", "parameter", "variable", "algorithm", "database", "json",
			"http", "configuration", "runtime", "compiler", "endpoint",
		},
	}
}

// style returns the base style of an element type.
func (r *Rules) style(t element.Type) Style {
	if s, ok := r.BaseStyles[t]; ok {
		return s
	}
	return Style{Normal, 0.5}
}

// timing returns the base timing of an element type.
func (r *Rules) timing(t element.Type) Timing {
	if tm, ok := r.BaseTimings[t]; ok {
		return tm
	}
	return Timing{0, 0.2}
}
