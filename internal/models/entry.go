package models

import (
	"strings"
	"time"
)

// Mood is the user-facing mood label of a journal entry
type Mood string

const (
	MoodHappy      Mood = "HAPPY"
	MoodJoyful     Mood = "JOYFUL"
	MoodExcited    Mood = "EXCITED"
	MoodCalm       Mood = "CALM"
	MoodContent    Mood = "CONTENT"
	MoodEnergetic  Mood = "ENERGETIC"
	MoodProductive Mood = "PRODUCTIVE"
	MoodNeutral    Mood = "NEUTRAL"
	MoodAnxious    Mood = "ANXIOUS"
	MoodSad        Mood = "SAD"
	MoodAngry      Mood = "ANGRY"
)

var knownMoods = map[Mood]bool{
	MoodHappy: true, MoodJoyful: true, MoodExcited: true, MoodCalm: true,
	MoodContent: true, MoodEnergetic: true, MoodProductive: true, MoodNeutral: true,
	MoodAnxious: true, MoodSad: true, MoodAngry: true,
}

// ParseMood accepts any casing; unknown labels return false
func ParseMood(s string) (Mood, bool) {
	m := Mood(strings.ToUpper(strings.TrimSpace(s)))
	return m, knownMoods[m]
}

// emotionMoods maps detailed emotion words onto moods
var emotionMoods = map[Mood][]string{
	MoodHappy: {"happiness", "happy", "joy", "jubilation", "ecstasy", "elation", "bliss", "cheerfulness",
		"glee", "delight", "delighted", "pleased", "thrilled", "euphoria", "gratitude",
		"thankfulness", "satisfaction", "amusement", "enjoyment", "optimistic", "optimism"},
	MoodSad: {"sadness", "sad", "sorrow", "grief", "melancholy", "dejection", "despair", "miserable",
		"gloomy", "unhappy", "hurt", "suffering", "anguish", "agony", "hopelessness",
		"lonely", "loneliness", "missing", "isolation", "miss", "lost", "empty",
		"tired", "exhausted", "fatigue", "drained", "weary", "burnout"},
	MoodAnxious: {"fear", "afraid", "scared", "terrified", "horrified", "dread", "fright",
		"terror", "panicked", "apprehension", "nervous", "worried", "anxious", "anxiety",
		"stressed", "tension", "uneasiness", "insecurity", "overwhelmed", "pressure"},
	MoodAngry: {"anger", "rage", "fury", "wrath", "annoyed", "irritable", "frustrated",
		"frustration", "resentment", "outrage", "hate", "hatred", "contempt", "bitter"},
	MoodCalm: {"calm", "calmness", "serenity", "relaxed", "peaceful", "tranquil", "comfortable",
		"patience", "acceptance", "tolerance", "carefree", "steady", "balanced"},
	MoodEnergetic: {"energetic", "energy", "determination", "determined", "motivated", "motivation",
		"driven", "focused", "power", "strong", "strength", "active", "dynamic", "vibrant", "fire"},
	MoodContent: {"content", "contentment", "fulfilled", "fulfillment", "at_ease", "satisfied"},
	MoodExcited: {"excited", "excitement", "eager", "anticipation", "looking_forward", "hyped", "enthusiastic"},
}

var emotionIndex = func() map[string]Mood {
	idx := make(map[string]Mood)
	for mood, words := range emotionMoods {
		for _, w := range words {
			idx[w] = mood
		}
	}
	return idx
}()

// MoodFromEmotion maps an emotion word (as returned by the AI) to a mood, NEUTRAL if unknown
func MoodFromEmotion(emotion string) Mood {
	if m, ok := emotionIndex[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return m
	}
	return MoodNeutral
}

// Trajectory labels
const (
	TrajectoryImproving = "improving"
	TrajectoryDeclining = "declining"
	TrajectoryStable    = "stable"
)

// TrajectoryResult classifies a user's recent mood sequence
type TrajectoryResult struct {
	Trajectory      string  `json:"trajectory"`
	RecentScore     float64 `json:"recent_score"`
	OlderScore      float64 `json:"older_score"`
	EntriesAnalyzed int     `json:"entries_analyzed"`
	Confidence      float64 `json:"confidence"`
	Message         string  `json:"message,omitempty"`
}

// Entry is an analyzed journal entry
type Entry struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	Mood             Mood       `json:"mood"`
	DominantEmotion  string     `json:"dominant_emotion,omitempty"`
	RiskScore        int        `json:"risk_score"`
	RiskLevel        RiskLevel  `json:"risk_level"`
	RiskSource       RiskSource `json:"risk_source"`
	LexiconRiskScore int        `json:"lexicon_risk_score"`
	AIRiskScore      int        `json:"ai_risk_score"`
	VAD              VAD        `json:"vad"`
	Trajectory       string     `json:"trajectory"`
	CrisisKeywords   []string   `json:"crisis_keywords"`
	SafetyTriggered  bool       `json:"safety_triggered"`
	Distortions      []string   `json:"cognitive_distortions"`
	Suggestions      []string   `json:"suggestions"`
	Insight          string     `json:"insight"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// EntryRequest creates a journal entry
type EntryRequest struct {
	Title   string `json:"title" binding:"max=100"`
	Content string `json:"content" binding:"required"`
	Mood    string `json:"mood,omitempty"` // optional, analysis picks one when empty
}
