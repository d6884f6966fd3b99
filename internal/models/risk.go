package models

// VAD is a valence/arousal/dominance triple, each axis in [0,1]
type VAD struct {
	Valence   float64 `json:"valence" binding:"min=0,max=1"`
	Arousal   float64 `json:"arousal" binding:"min=0,max=1"`
	Dominance float64 `json:"dominance" binding:"min=0,max=1"`
}

// InRange reports whether every axis lies in [0,1]
func (v VAD) InRange() bool {
	for _, x := range []float64{v.Valence, v.Arousal, v.Dominance} {
		if !(x >= 0 && x <= 1) {
			return false
		}
	}
	return true
}

// NeutralVAD is the midpoint used when nothing in the text is known
func NeutralVAD() VAD {
	return VAD{Valence: 0.5, Arousal: 0.5, Dominance: 0.5}
}

// AIUnavailable marks an AI risk score that was never obtained
const AIUnavailable = -1

// Risk thresholds shared by the quick screen, the ensemble and the alert policy
const (
	MediumRiskThreshold = 4
	HighRiskThreshold   = 7
	CrisisThreshold     = 9
	MaxRiskScore        = 10
)

// RiskLevel buckets a 0-10 risk score
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"    // 0-3
	RiskMedium RiskLevel = "MEDIUM" // 4-6
	RiskHigh   RiskLevel = "HIGH"   // 7-8
	RiskCrisis RiskLevel = "CRISIS" // 9-10
)

// RiskLevelFor maps a score onto its level
func RiskLevelFor(score int) RiskLevel {
	switch {
	case score >= CrisisThreshold:
		return RiskCrisis
	case score >= HighRiskThreshold:
		return RiskHigh
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// RequiresImmediateAttention reports whether the level is HIGH or CRISIS
func (l RiskLevel) RequiresImmediateAttention() bool {
	return l == RiskHigh || l == RiskCrisis
}

// RiskSource names the layer the final risk score came from
type RiskSource string

const (
	SourceLexicon     RiskSource = "LEXICON"
	SourceAI          RiskSource = "AI"
	SourceBoth        RiskSource = "BOTH"
	SourceLexiconOnly RiskSource = "LEXICON_ONLY"
)

// QuickScreenResult is the lexicon-only pre-check, always available before any AI call
type QuickScreenResult struct {
	RiskScore        int      `json:"risk_score"`
	IsHighRisk       bool     `json:"is_high_risk"`
	IsCrisis         bool     `json:"is_crisis"`
	DetectedKeywords []string `json:"detected_keywords"`
}

// EnsembleResult is the fused verdict of the lexicon and AI layers
type EnsembleResult struct {
	FinalRiskScore             int        `json:"final_risk_score"`
	LexiconRiskScore           int        `json:"lexicon_risk_score"`
	AIRiskScore                int        `json:"ai_risk_score"`    // AIUnavailable when absent
	VADImpliedRisk             int        `json:"vad_implied_risk"` // AIUnavailable when not computed
	RiskSource                 RiskSource `json:"risk_source"`
	RiskLevel                  RiskLevel  `json:"risk_level"`
	FinalVAD                   VAD        `json:"final_vad"`
	LexiconVAD                 VAD        `json:"lexicon_vad"`
	AIVAD                      *VAD       `json:"ai_vad,omitempty"`
	DetectedCrisisKeywords     []string   `json:"detected_crisis_keywords"`
	LexiconMatchCount          int        `json:"lexicon_match_count"`
	RequiresImmediateAttention bool       `json:"requires_immediate_attention"`
	CrisisOverride             bool       `json:"crisis_override"` // raised by the crisis safety layer
}
