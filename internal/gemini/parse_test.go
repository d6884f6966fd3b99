package gemini

import (
	"testing"
	"time"

	"moodrisk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, CleanJSON("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("```{\"a\":1}```"))
	assert.Equal(t, `{"a":1}`, CleanJSON("  {\"a\":1}  "))
}

func TestParseAnalysis(t *testing.T) {
	raw := "```json\n" + `{
	  "dominantEmotion": "sadness",
	  "cognitiveDistortions": ["catastrophizing", " "],
	  "emotionalTrajectory": "Declining",
	  "riskScore": 6,
	  "personalizedSuggestions": ["Take a short walk"],
	  "narrativeInsight": "You sound tired.",
	  "vadScores": {"valence": 0.2, "arousal": 0.4, "dominance": 0.3}
	}` + "\n```"

	a, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, 6, a.Score())
	require.NotNil(t, a.VAD)
	assert.Equal(t, models.VAD{Valence: 0.2, Arousal: 0.4, Dominance: 0.3}, *a.VAD)
	assert.Equal(t, "sadness", a.DominantEmotion)
	assert.Equal(t, "declining", a.Trajectory)
	assert.Equal(t, []string{"catastrophizing"}, a.Distortions)
	assert.Equal(t, []string{"Take a short walk"}, a.Suggestions)
	assert.Equal(t, "You sound tired.", a.NarrativeInsight)
}

func TestParseAnalysis_OutOfRangeValues(t *testing.T) {
	a, err := ParseAnalysis(`{"riskScore": 14, "vadScores": {"valence": 1.4, "arousal": 0.4, "dominance": 0.3}}`)
	require.NoError(t, err)
	assert.Equal(t, 10, a.Score())
	assert.Nil(t, a.VAD)

	for _, raw := range []string{`{"riskScore": 1e19}`, `{"riskScore": 1e308}`, `{"riskScore": 10.4}`} {
		a, err = ParseAnalysis(raw)
		require.NoError(t, err)
		assert.Equal(t, 10, a.Score(), raw)
	}

	a, err = ParseAnalysis(`{"riskScore": -3, "vadScores": {"valence": 0.4}}`)
	require.NoError(t, err)
	assert.Equal(t, models.AIUnavailable, a.Score())
	assert.Nil(t, a.VAD)
}

func TestParseAnalysis_FractionalScoreRounds(t *testing.T) {
	a, err := ParseAnalysis(`{"riskScore": 6.6, "primaryEmotion": "FEAR"}`)
	require.NoError(t, err)
	assert.Equal(t, 7, a.Score())
	assert.Equal(t, "FEAR", a.DominantEmotion)
}

func TestParseAnalysis_Malformed(t *testing.T) {
	for _, raw := range []string{"", "```json\n```", "I'm sorry, I can't help with that.", `{"riskScore": "high"}`} {
		_, err := ParseAnalysis(raw)
		assert.ErrorIs(t, err, ErrMalformedAnalysis, raw)
	}
}

func TestBuildPrompt(t *testing.T) {
	day := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	prompt := BuildPrompt(models.AnalysisRequest{
		Title:   "Rough week",
		Content: "Nothing is working out.",
		History: []models.HistoryItem{
			{Date: day, Mood: models.MoodSad, Emotion: "grief"},
			{Date: day, Mood: models.MoodAnxious},
			{Mood: models.MoodCalm, Emotion: "relief"},
			{Date: day, Mood: models.MoodHappy, Emotion: "joy"},
		},
	})

	assert.Contains(t, prompt, "Title: Rough week")
	assert.Contains(t, prompt, "Nothing is working out.")
	assert.Contains(t, prompt, "- 2025-03-14: Mood=SAD, Emotion=grief")
	assert.Contains(t, prompt, "- 2025-03-14: Mood=ANXIOUS, Emotion=unknown")
	assert.Contains(t, prompt, "- unknown: Mood=CALM, Emotion=relief")
	assert.NotContains(t, prompt, "Mood=HAPPY")
	assert.Contains(t, prompt, `"vadScores"`)
}

func TestBuildPrompt_FirstEntry(t *testing.T) {
	prompt := BuildPrompt(models.AnalysisRequest{Content: "hello"})
	assert.Contains(t, prompt, "this is their first entry")
	assert.NotContains(t, prompt, "Title:")
}
