package lexicon

import (
	"math"
	"regexp"
	"strings"

	"moodrisk/internal/models"
)

var wordPattern = regexp.MustCompile(`[a-zA-Z]+`)

// Analyzer scores text against a Lexicon. It holds no mutable state.
type Analyzer struct {
	lex *Lexicon
}

// NewAnalyzer creates an analyzer over lex
func NewAnalyzer(lex *Lexicon) *Analyzer {
	return &Analyzer{lex: lex}
}

// Lexicon returns the underlying lexicon
func (a *Analyzer) Lexicon() *Lexicon {
	return a.lex
}

// Tokenize extracts maximal runs of ASCII letters, lowercased
func Tokenize(text string) []string {
	tokens := wordPattern.FindAllString(text, -1)
	for i, t := range tokens {
		tokens[i] = strings.ToLower(t)
	}
	return tokens
}

func (a *Analyzer) matches(text string) []models.VAD {
	var found []models.VAD
	for _, token := range Tokenize(text) {
		if vad, ok := a.lex.Lookup(token); ok {
			found = append(found, vad)
		}
	}
	return found
}

// AnalyzeText averages the VAD of every matched token, rounded to 2 decimals.
// Text with no matches is neutral.
func (a *Analyzer) AnalyzeText(text string) models.VAD {
	if strings.TrimSpace(text) == "" {
		return models.NeutralVAD()
	}

	found := a.matches(text)
	if len(found) == 0 {
		return models.NeutralVAD()
	}

	var sum models.VAD
	for _, vad := range found {
		sum.Valence += vad.Valence
		sum.Arousal += vad.Arousal
		sum.Dominance += vad.Dominance
	}
	n := float64(len(found))

	return models.VAD{
		Valence:   round2(sum.Valence / n),
		Arousal:   round2(sum.Arousal / n),
		Dominance: round2(sum.Dominance / n),
	}
}

// DetectCrisisKeywords returns every crisis phrase contained in the lowercased text
func (a *Analyzer) DetectCrisisKeywords(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	lower := strings.ToLower(text)
	detected := []string{}
	for _, phrase := range a.lex.crisis {
		if strings.Contains(lower, phrase) {
			detected = append(detected, phrase)
		}
	}
	return detected
}

// CalculateRiskScore derives a 0-10 risk score.
// Blank text scores 0; non-blank text without any lexicon match scores 4 (neutral VAD).
// Two or more crisis phrases short-circuit to 9. Otherwise risk grows with low valence
// and low dominance; arousal is excluded so excitement alone never reads as risk.
func (a *Analyzer) CalculateRiskScore(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	crisisCount := len(a.DetectCrisisKeywords(text))
	if crisisCount >= 2 {
		return models.CrisisThreshold
	}

	vad := a.AnalyzeText(text)
	base := ((1-vad.Valence)*0.6 + (1-vad.Dominance)*0.4) * 8

	if crisisCount == 1 {
		base = math.Min(models.MaxRiskScore, base+3)
	}

	return int(math.Round(clamp(base, 0, models.MaxRiskScore)))
}

// MatchedWordCount counts tokens found in the lexicon (repeats included)
func (a *Analyzer) MatchedWordCount(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}
	return len(a.matches(text))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
