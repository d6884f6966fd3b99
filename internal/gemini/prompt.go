package gemini

import (
	"fmt"
	"strings"

	"moodrisk/internal/models"
)

// SystemInstruction frames every analysis request, whichever provider serves it
const SystemInstruction = `You are a psychological analysis engine for a private mood journal.
You read one journal entry at a time, together with a short summary of the writer's recent entries,
and describe its emotional content and latent mental health risk.
You never give medical diagnoses. You answer with a single JSON object and nothing else.`

// historyInPrompt is how many previous entries are summarized for the model
const historyInPrompt = 3

const instructions = `=== ANALYSIS INSTRUCTIONS ===
Provide ALL of the following:

1. DOMINANT EMOTION: the primary emotion expressed, as one lowercase word
2. COGNITIVE DISTORTIONS: any of all-or-nothing, catastrophizing, mind-reading,
   emotional-reasoning, should-statements, overgeneralization, personalization
3. EMOTIONAL TRAJECTORY: compared with the recent entries, improving, declining or stable
4. RISK SCORE: mental health concern level 1-10 (1=healthy, 10=crisis)
5. PERSONALIZED SUGGESTIONS: 2-3 specific, gentle suggestions
6. NARRATIVE INSIGHT: 2-3 sentence professional reflection
7. VAD SCORES:
   - valence (0.0 to 1.0): 0=misery, 1=ecstasy
   - arousal (0.0 to 1.0): 0=sleepy, 1=panic or excitement
   - dominance (0.0 to 1.0): 0=helpless, 1=in control

Return ONLY valid JSON, no markdown:
{
  "dominantEmotion": "string",
  "cognitiveDistortions": ["distortion1"],
  "emotionalTrajectory": "improving|declining|stable",
  "riskScore": 1,
  "personalizedSuggestions": ["suggestion1", "suggestion2"],
  "narrativeInsight": "2-3 sentence analysis",
  "vadScores": {"valence": 0.5, "arousal": 0.5, "dominance": 0.5}
}
`

// BuildPrompt renders the user prompt for one entry
func BuildPrompt(req models.AnalysisRequest) string {
	var b strings.Builder

	b.WriteString("Analyze the following journal entry for emotional nuance and latent risk.\n\n")

	b.WriteString("=== RECENT EMOTIONAL HISTORY ===\n")
	if len(req.History) == 0 {
		b.WriteString("(No previous entries - this is their first entry)\n")
	}
	for i, h := range req.History {
		if i == historyInPrompt {
			break
		}
		date := "unknown"
		if !h.Date.IsZero() {
			date = h.Date.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "- %s: Mood=%s, Emotion=%s\n", date, orUnknown(string(h.Mood)), orUnknown(h.Emotion))
	}
	b.WriteString("\n")

	b.WriteString("=== CURRENT JOURNAL ENTRY ===\n")
	if req.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", req.Title)
	}
	fmt.Fprintf(&b, "\nContent:\n%s\n\n", req.Content)

	b.WriteString(instructions)

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
