package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"moodrisk/internal/models"
)

// ErrMalformedAnalysis is returned when a model answer is not a usable analysis object
var ErrMalformedAnalysis = errors.New("malformed analysis")

type rawVAD struct {
	Valence   *float64 `json:"valence"`
	Arousal   *float64 `json:"arousal"`
	Dominance *float64 `json:"dominance"`
}

type rawAnalysis struct {
	RiskScore        *float64 `json:"riskScore"`
	VADScores        *rawVAD  `json:"vadScores"`
	DominantEmotion  string   `json:"dominantEmotion"`
	PrimaryEmotion   string   `json:"primaryEmotion"`
	Trajectory       string   `json:"emotionalTrajectory"`
	Distortions      []string `json:"cognitiveDistortions"`
	Suggestions      []string `json:"personalizedSuggestions"`
	NarrativeInsight string   `json:"narrativeInsight"`
}

// CleanJSON strips markdown code fences models like to wrap JSON in
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ParseAnalysis decodes a model answer.
// A negative risk score is dropped, a score above 10 is capped at 10, and a VAD triple
// that is incomplete or outside [0,1] is dropped.
func ParseAnalysis(raw string) (*models.AIAnalysis, error) {
	clean := CleanJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedAnalysis)
	}

	var r rawAnalysis
	if err := json.Unmarshal([]byte(clean), &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAnalysis, err)
	}

	analysis := &models.AIAnalysis{
		DominantEmotion:  strings.TrimSpace(r.DominantEmotion),
		Trajectory:       strings.ToLower(strings.TrimSpace(r.Trajectory)),
		Distortions:      nonEmpty(r.Distortions),
		Suggestions:      nonEmpty(r.Suggestions),
		NarrativeInsight: strings.TrimSpace(r.NarrativeInsight),
	}
	if analysis.DominantEmotion == "" {
		analysis.DominantEmotion = strings.TrimSpace(r.PrimaryEmotion)
	}

	if r.RiskScore != nil && !math.IsNaN(*r.RiskScore) && *r.RiskScore >= 0 {
		// clamp before converting; huge floats would wrap negative as int
		score := int(math.Round(math.Min(*r.RiskScore, models.MaxRiskScore)))
		analysis.RiskScore = &score
	}

	if v := r.VADScores; v != nil && v.Valence != nil && v.Arousal != nil && v.Dominance != nil {
		vad := models.VAD{Valence: *v.Valence, Arousal: *v.Arousal, Dominance: *v.Dominance}
		if vad.InRange() {
			analysis.VAD = &vad
		}
	}

	return analysis, nil
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
