package emotion

import (
	"math"
	"regexp"
	"strings"

	"github.com/hazyhaar/speakdown/element"
)

// Annotation is the speaking style computed for one element.
type Annotation struct {
	Emotion   Emotion `json:"emotion"`
	Intensity float64 `json:"intensity"`
	Timing    Timing  `json:"timing"`
}

// Annotator assigns emotions and pauses to element sequences.
type Annotator struct {
	rules      *Rules
	excitedRe  *regexp.Regexp
	emphasisRe *regexp.Regexp
	jargonRe   *regexp.Regexp
}

// NewAnnotator creates an Annotator over rules. A nil rules means
// DefaultRules.
func NewAnnotator(rules *Rules) *Annotator {
	if rules == nil {
		rules = defaultRules
	}
	return &Annotator{
		rules:      rules,
		excitedRe:  wordsRe(rules.ExcitedWords),
		emphasisRe: wordsRe(rules.EmphasisWords),
		jargonRe:   wordsRe(rules.JargonWords),
	}
}

// Rules returns the rule set the annotator was built with.
func (a *Annotator) Rules() *Rules {
	return a.rules
}

var defaultAnnotator = NewAnnotator(nil)

// ContextualEmotions annotates elems with the default rules.
func ContextualEmotions(elems []element.Element) []Annotation {
	anns, _ := defaultAnnotator.Annotate(elems)
	return anns
}

// Annotate classifies the document and returns one annotation per element,
// in order, together with the archetype that drove the adjustments.
func (a *Annotator) Annotate(elems []element.Element) ([]Annotation, DocType) {
	dt := a.rules.DetectDocumentType(elems)
	return a.AnnotateAs(elems, dt), dt
}

// AnnotateAs is Annotate with a caller-chosen archetype.
func (a *Annotator) AnnotateAs(elems []element.Element, dt DocType) []Annotation {
	anns := make([]Annotation, len(elems))
	for i, e := range elems {
		anns[i] = a.base(e)
		a.contentPass(e, &anns[i])
		a.docTypePass(e, &anns[i], dt)
		clamp(&anns[i])
	}
	positionalPass(anns)
	flowPass(elems, anns)
	return anns
}

// base looks up the per-type style and timing; heading depth overrides
// both intensity and the pause that follows.
func (a *Annotator) base(e element.Element) Annotation {
	st := a.rules.style(e.Type)
	ann := Annotation{Emotion: st.Emotion, Intensity: st.Intensity, Timing: a.rules.timing(e.Type)}
	if e.Type == element.TypeHeading {
		switch e.Level {
		case 1:
			ann.Intensity, ann.Timing.PauseAfter = 0.8, 1.0
		case 2:
			ann.Intensity, ann.Timing.PauseAfter = 0.6, 0.8
		default:
			ann.Intensity, ann.Timing.PauseAfter = 0.5, 0.6
		}
	}
	return ann
}

func (a *Annotator) contentPass(e element.Element, ann *Annotation) {
	lower := strings.ToLower(e.Content)
	if strings.Contains(e.Content, "!") || (a.excitedRe != nil && a.excitedRe.MatchString(lower)) {
		ann.Emotion = Excited
		ann.Intensity += 0.2
	}
	if a.emphasisRe != nil && a.emphasisRe.MatchString(lower) {
		ann.Intensity += 0.2
	}
	if a.jargonRe != nil && a.jargonRe.MatchString(lower) && ann.Emotion != Excited {
		ann.Emotion = Monotone
	}
	if strings.HasSuffix(strings.TrimSpace(e.Content), "?") {
		ann.Timing.PauseAfter += 0.3
	}
}

func (a *Annotator) docTypePass(e element.Element, ann *Annotation, dt DocType) {
	prof := a.rules.Profiles[dt]
	switch dt {
	case Technical:
		if ann.Emotion == Excited {
			ann.Emotion = Normal
		}
		ann.Timing.PauseAfter *= prof.PauseAfterMult
	case Marketing:
		if ann.Emotion == Normal || ann.Emotion == Soft {
			ann.Emotion = Excited
		}
		ann.Intensity += prof.EmphasisBoost
		ann.Timing.PauseAfter *= prof.PauseAfterMult
	case Narrative:
		ann.Intensity = prof.BaseIntensity
	case Tutorial:
		ann.Intensity = prof.BaseIntensity
		if strings.Contains(strings.ToLower(e.Content), "step") {
			ann.Timing.PauseBefore, ann.Timing.PauseAfter = 0.3, 0.6
		}
	}
}

// positionalPass slows down the opening and closing tenth of the document.
func positionalPass(anns []Annotation) {
	n := len(anns)
	if n == 0 {
		return
	}
	edge := max(1, n/10)
	for i := range anns {
		ann := &anns[i]
		if i < edge {
			ann.Timing.PauseBefore = math.Max(ann.Timing.PauseBefore, 0.5)
			if ann.Emotion == Normal {
				ann.Emotion = Excited
			}
		}
		if i >= n-edge {
			ann.Timing.PauseAfter = math.Max(ann.Timing.PauseAfter, 0.8)
			if ann.Emotion == Excited {
				ann.Intensity += 0.1
			}
		}
		clamp(ann)
	}
}

// flowPass breaks up monotone runs: repeated excitement outside headings
// and bold spans is damped, every third consecutive monotone element is
// reset to normal, and an excited-to-soft shift gets a breath first.
func flowPass(elems []element.Element, anns []Annotation) {
	monoRun := 0
	for i := range anns {
		cur := &anns[i]
		if cur.Emotion == Monotone {
			monoRun++
		} else {
			monoRun = 0
		}
		if monoRun >= 3 {
			cur.Emotion, cur.Intensity = Normal, 0.5
			monoRun = 0
		}
		if i > 0 {
			prev := anns[i-1]
			t := elems[i].Type
			if prev.Emotion == Excited && cur.Emotion == Excited && t != element.TypeHeading && t != element.TypeBold {
				cur.Intensity *= 0.9
			}
			if prev.Emotion == Excited && cur.Emotion == Soft {
				cur.Timing.PauseBefore = math.Max(cur.Timing.PauseBefore, 0.3)
			}
		}
		clamp(cur)
	}
}

func clamp(ann *Annotation) {
	ann.Intensity = math.Min(1, math.Max(0, ann.Intensity))
	ann.Timing.PauseBefore = math.Max(0, ann.Timing.PauseBefore)
	ann.Timing.PauseAfter = math.Max(0, ann.Timing.PauseAfter)
}

func wordsRe(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)\b`)
}
