package ensemble

import (
	"math"

	"moodrisk/internal/lexicon"
	"moodrisk/internal/models"

	"go.uber.org/zap"
)

// minMatchesForBlend is the lexicon match count at which lexicon and AI VAD are averaged
// instead of trusting the AI VAD alone
const minMatchesForBlend = 3

// Combiner fuses the lexicon layer with an optional AI analysis.
// Every method is a pure function of the immutable lexicon and is safe for concurrent use.
type Combiner struct {
	analyzer *lexicon.Analyzer
	logger   *zap.Logger
}

// NewCombiner creates a combiner over the lexicon analyzer
func NewCombiner(analyzer *lexicon.Analyzer, logger *zap.Logger) *Combiner {
	return &Combiner{
		analyzer: analyzer,
		logger:   logger,
	}
}

// Analyzer returns the lexicon layer
func (c *Combiner) Analyzer() *lexicon.Analyzer {
	return c.analyzer
}

// QuickScreen runs the lexicon layer only
func (c *Combiner) QuickScreen(text string) models.QuickScreenResult {
	score := c.analyzer.CalculateRiskScore(text)
	return models.QuickScreenResult{
		RiskScore:        score,
		IsHighRisk:       score >= models.HighRiskThreshold,
		IsCrisis:         score >= models.CrisisThreshold,
		DetectedKeywords: c.analyzer.DetectCrisisKeywords(text),
	}
}

// AnalyzeRisk fuses both layers. aiRiskScore < 0 means the AI was unavailable; aiVAD may be nil.
// The final score never falls below any score computed along the way.
func (c *Combiner) AnalyzeRisk(text string, aiRiskScore int, aiVAD *models.VAD) models.EnsembleResult {
	lexiconRisk := c.analyzer.CalculateRiskScore(text)
	lexiconVAD := c.analyzer.AnalyzeText(text)
	keywords := c.analyzer.DetectCrisisKeywords(text)
	matched := c.analyzer.MatchedWordCount(text)

	result := models.EnsembleResult{
		LexiconRiskScore:       lexiconRisk,
		AIRiskScore:            models.AIUnavailable,
		VADImpliedRisk:         models.AIUnavailable,
		LexiconVAD:             lexiconVAD,
		DetectedCrisisKeywords: keywords,
		LexiconMatchCount:      matched,
	}

	if aiRiskScore >= 0 {
		aiRisk := min(aiRiskScore, models.MaxRiskScore)
		result.AIRiskScore = aiRisk

		// VAD cross-check on the AI's own VAD, folded in on the AI side
		if aiVAD != nil {
			result.VADImpliedRisk = VADImpliedRisk(*aiVAD)
			aiRisk = max(aiRisk, result.VADImpliedRisk)
		}

		result.FinalRiskScore = max(lexiconRisk, aiRisk)
		switch {
		case lexiconRisk > aiRisk:
			result.RiskSource = models.SourceLexicon
		case aiRisk > lexiconRisk:
			result.RiskSource = models.SourceAI
		default:
			result.RiskSource = models.SourceBoth
		}
	} else {
		result.FinalRiskScore = lexiconRisk
		result.RiskSource = models.SourceLexiconOnly
	}

	switch {
	case aiVAD != nil && matched < minMatchesForBlend:
		v := *aiVAD
		result.AIVAD = &v
		result.FinalVAD = v
	case aiVAD != nil:
		v := *aiVAD
		result.AIVAD = &v
		result.FinalVAD = averageVAD(lexiconVAD, v)
	default:
		result.FinalVAD = lexiconVAD
	}

	setLevel(&result)

	c.logger.Info("Ensemble risk analysis",
		zap.Int("final", result.FinalRiskScore),
		zap.Int("lexicon", result.LexiconRiskScore),
		zap.Int("ai", result.AIRiskScore),
		zap.Int("vad_implied", result.VADImpliedRisk),
		zap.String("source", string(result.RiskSource)),
		zap.String("level", string(result.RiskLevel)),
		zap.Strings("keywords", keywords))

	return result
}

// Raise lifts the final score to at least score and re-derives the level.
// It never lowers a score and reports whether anything changed.
func Raise(result *models.EnsembleResult, score int) bool {
	if score <= result.FinalRiskScore {
		return false
	}
	result.FinalRiskScore = min(score, models.MaxRiskScore)
	result.CrisisOverride = true
	setLevel(result)
	return true
}

// VADImpliedRisk is (1 - valence) * arousal * 10, clamped to [1,10]
func VADImpliedRisk(v models.VAD) int {
	risk := int(math.Round((1 - v.Valence) * v.Arousal * 10))
	return max(1, min(models.MaxRiskScore, risk))
}

func setLevel(result *models.EnsembleResult) {
	result.RiskLevel = models.RiskLevelFor(result.FinalRiskScore)
	result.RequiresImmediateAttention = result.RiskLevel.RequiresImmediateAttention()
}

func averageVAD(a, b models.VAD) models.VAD {
	return models.VAD{
		Valence:   (a.Valence + b.Valence) / 2,
		Arousal:   (a.Arousal + b.Arousal) / 2,
		Dominance: (a.Dominance + b.Dominance) / 2,
	}
}
