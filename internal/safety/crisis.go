// Package safety is the deterministic crisis red line. Its verdict is computed before any AI
// call and no other layer may lower a score it raised.
package safety

import "strings"

// MinimumCrisisScore is the floor forced onto any text that matches a crisis phrase
const MinimumCrisisScore = 9

// Annotation is appended to the narrative insight of a matched entry
const Annotation = " [Safety Alert: Crisis resources triggered.]"

// FallbackMessage replaces the insight when the AI failed on a matched entry
const FallbackMessage = "We noticed you might be going through a difficult moment. Please reach out for help."

// phrases are unambiguous self-harm expressions, kept apart from the lexicon crisis set
var phrases = []string{
	"suicide",
	"kill myself",
	"want to die",
	"end it all",
	"hurt myself",
}

// Verdict is the outcome of the crisis check on one text
type Verdict struct {
	Matched bool     `json:"matched"`
	Phrases []string `json:"phrases,omitempty"`
}

// Check matches text against the fixed phrase list
func Check(text string) Verdict {
	lower := strings.ToLower(text)
	var matched []string
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			matched = append(matched, p)
		}
	}
	return Verdict{Matched: len(matched) > 0, Phrases: matched}
}

// CheckCrisisKeywords reports whether text contains any fixed crisis phrase
func CheckCrisisKeywords(text string) bool {
	return Check(text).Matched
}

// Enforce applies the override to a score and its insight. Unmatched verdicts pass both through.
func (v Verdict) Enforce(score int, insight string) (int, string) {
	if !v.Matched {
		return score, insight
	}
	if score < MinimumCrisisScore {
		score = MinimumCrisisScore
	}
	return score, Annotate(insight)
}

// Annotate appends the safety annotation once
func Annotate(insight string) string {
	if strings.HasSuffix(insight, Annotation) {
		return insight
	}
	return insight + Annotation
}
