package models

import "time"

// AnalysisRequest is what the AI collaborator is asked to analyze
type AnalysisRequest struct {
	Title   string
	Content string
	History []HistoryItem // most recent first
}

// HistoryItem summarizes a previous entry for prompt context
type HistoryItem struct {
	Date    time.Time
	Mood    Mood
	Emotion string
}

// AIAnalysis is the structured response of an LLM provider.
// RiskScore and VAD are nil when the model left them out.
type AIAnalysis struct {
	RiskScore        *int     `json:"riskScore,omitempty"`
	VAD              *VAD     `json:"vadScores,omitempty"`
	DominantEmotion  string   `json:"dominantEmotion,omitempty"`
	Trajectory       string   `json:"emotionalTrajectory,omitempty"`
	Distortions      []string `json:"cognitiveDistortions,omitempty"`
	Suggestions      []string `json:"personalizedSuggestions,omitempty"`
	NarrativeInsight string   `json:"narrativeInsight,omitempty"`
	Provider         string   `json:"provider,omitempty"`
	ModelVersion     string   `json:"model_version,omitempty"`
}

// Score returns the AI risk score or AIUnavailable
func (a *AIAnalysis) Score() int {
	if a == nil || a.RiskScore == nil {
		return AIUnavailable
	}
	return *a.RiskScore
}

// AnalyzeRequest is the body of a pure ensemble request
type AnalyzeRequest struct {
	Text        string `json:"text" binding:"required"`
	AIRiskScore *int   `json:"ai_risk_score,omitempty" binding:"omitempty,min=-1,max=10"`
	AIVAD       *VAD   `json:"ai_vad,omitempty"`
}

// ScreenRequest is the body of a quick screen request
type ScreenRequest struct {
	Text string `json:"text" binding:"required"`
}
