package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moodrisk/internal/ensemble"
	"moodrisk/internal/metrics"
	"moodrisk/internal/models"
	"moodrisk/internal/repository"
	"moodrisk/internal/safety"
	"moodrisk/internal/trajectory"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidEntry is returned for entries that cannot be analyzed
var ErrInvalidEntry = errors.New("invalid entry")

// AIClient is the optional LLM collaborator
type AIClient interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error)
}

// EntryResult is an analyzed and saved entry with everything computed on the way
type EntryResult struct {
	Entry       *models.Entry            `json:"entry"`
	QuickScreen models.QuickScreenResult `json:"quick_screen"`
	Analysis    models.EnsembleResult    `json:"analysis"`
	Alerts      []*models.Alert          `json:"alerts"`
}

// Journal runs the entry analysis pipeline
type Journal struct {
	combiner  *ensemble.Combiner
	ai        AIClient
	entries   repository.EntryRepository
	alerts    *trajectory.AlertEngine
	metrics   *metrics.Collector
	aiTimeout time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewJournal creates the pipeline. ai and collector may be nil.
func NewJournal(
	combiner *ensemble.Combiner,
	ai AIClient,
	entries repository.EntryRepository,
	alerts *trajectory.AlertEngine,
	collector *metrics.Collector,
	aiTimeout time.Duration,
	logger *zap.Logger,
) *Journal {
	if aiTimeout <= 0 {
		aiTimeout = 30 * time.Second
	}
	return &Journal{
		combiner:  combiner,
		ai:        ai,
		entries:   entries,
		alerts:    alerts,
		metrics:   collector,
		aiTimeout: aiTimeout,
		logger:    logger,
		now:       time.Now,
	}
}

// QuickScreen is the lexicon-only pre-check
func (j *Journal) QuickScreen(text string) models.QuickScreenResult {
	return j.combiner.QuickScreen(text)
}

// AnalyzeRisk fuses caller supplied AI values with the lexicon, without calling any provider.
// The crisis safety layer is applied as for journal entries. A VAD outside [0,1] is ignored.
func (j *Journal) AnalyzeRisk(req models.AnalyzeRequest) models.EnsembleResult {
	aiScore := models.AIUnavailable
	if req.AIRiskScore != nil {
		aiScore = *req.AIRiskScore
	}
	aiVAD := req.AIVAD
	if aiVAD != nil && !aiVAD.InRange() {
		j.logger.Warn("Ignoring out of range AI VAD",
			zap.Float64("valence", aiVAD.Valence),
			zap.Float64("arousal", aiVAD.Arousal),
			zap.Float64("dominance", aiVAD.Dominance))
		aiVAD = nil
	}
	result := j.combiner.AnalyzeRisk(req.Text, aiScore, aiVAD)

	verdict := safety.Check(req.Text)
	score, _ := verdict.Enforce(result.FinalRiskScore, "")
	ensemble.Raise(&result, score)

	return result
}

// CreateEntry analyzes and stores a new entry, then runs the alert policy
func (j *Journal) CreateEntry(ctx context.Context, userID string, req models.EntryRequest) (*EntryResult, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidEntry)
	}
	mood, err := requestedMood(req.Mood)
	if err != nil {
		return nil, err
	}

	history, err := j.entries.RecentEntries(ctx, userID, trajectory.Window-1)
	if err != nil {
		j.logger.Warn("Failed to load entry history, analyzing without it",
			zap.String("user_id", userID),
			zap.Error(err))
		history = nil
	}

	now := j.now().UTC()
	entry := &models.Entry{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     strings.TrimSpace(req.Title),
		Content:   req.Content,
		Mood:      mood,
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := j.assess(ctx, entry, history)

	if err := j.entries.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}

	result.Alerts = j.generateAlerts(ctx, entry, history)
	return result, nil
}

// Entries lists a user's entries, most recent first
func (j *Journal) Entries(ctx context.Context, userID string, limit, offset int) ([]*models.Entry, error) {
	return j.entries.ListByUser(ctx, userID, limit, offset)
}

// Entry returns repository.ErrNotFound for entries the user does not own
func (j *Journal) Entry(ctx context.Context, userID, entryID string) (*models.Entry, error) {
	return j.entries.Get(ctx, userID, entryID)
}

// ReanalyzeEntry runs the pipeline again on a stored entry, keeping its mood
func (j *Journal) ReanalyzeEntry(ctx context.Context, userID, entryID string) (*EntryResult, error) {
	entry, err := j.entries.Get(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	all, err := j.entries.ListByUser(ctx, userID, 0, 0)
	if err != nil {
		j.logger.Warn("Failed to load entry history, analyzing without it",
			zap.String("user_id", userID),
			zap.Error(err))
	}
	var history []*models.Entry
	for _, e := range all {
		if e.ID != entry.ID && !e.CreatedAt.After(entry.CreatedAt) && len(history) < trajectory.Window-1 {
			history = append(history, e)
		}
	}

	entry.UpdatedAt = j.now().UTC()

	result := j.assess(ctx, entry, history)

	if err := j.entries.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}

	result.Alerts = j.generateAlerts(ctx, entry, history)
	return result, nil
}

// assess fills the analysis fields of entry. history is most recent first and excludes entry.
func (j *Journal) assess(ctx context.Context, entry *models.Entry, history []*models.Entry) *EntryResult {
	start := j.now()

	// deterministic checks first, before anything can block
	verdict := safety.Check(entry.Content)
	if verdict.Matched {
		j.logger.Warn("Crisis phrases detected",
			zap.String("user_id", entry.UserID),
			zap.String("entry_id", entry.ID),
			zap.Strings("phrases", verdict.Phrases))
	}

	screen := j.combiner.QuickScreen(entry.Content)
	if screen.IsHighRisk {
		j.logger.Warn("Quick screen flagged entry",
			zap.String("entry_id", entry.ID),
			zap.Int("risk", screen.RiskScore),
			zap.Strings("keywords", screen.DetectedKeywords))
	}

	analysis := j.callAI(ctx, entry, history)

	var aiVAD *models.VAD
	insight := ""
	if analysis != nil {
		aiVAD = analysis.VAD
		insight = analysis.NarrativeInsight
	}

	result := j.combiner.AnalyzeRisk(entry.Content, analysis.Score(), aiVAD)

	score, insight := verdict.Enforce(result.FinalRiskScore, insight)
	if analysis == nil && verdict.Matched {
		insight = safety.FallbackMessage
	}
	if ensemble.Raise(&result, score) {
		j.logger.Warn("Risk score raised by crisis safety layer",
			zap.String("entry_id", entry.ID),
			zap.Int("risk", result.FinalRiskScore))
	}

	if entry.Mood == "" {
		entry.Mood = models.MoodNeutral
		if analysis != nil && analysis.DominantEmotion != "" {
			entry.Mood = models.MoodFromEmotion(analysis.DominantEmotion)
		}
	}

	moods := make([]models.Mood, 0, len(history)+1)
	moods = append(moods, entry.Mood)
	for _, h := range history {
		moods = append(moods, h.Mood)
	}
	traj := trajectory.Classify(moods)

	entry.RiskScore = result.FinalRiskScore
	entry.RiskLevel = result.RiskLevel
	entry.RiskSource = result.RiskSource
	entry.LexiconRiskScore = result.LexiconRiskScore
	entry.AIRiskScore = result.AIRiskScore
	entry.VAD = result.FinalVAD
	entry.Trajectory = traj.Trajectory
	entry.CrisisKeywords = mergePhrases(result.DetectedCrisisKeywords, verdict.Phrases)
	entry.SafetyTriggered = verdict.Matched
	entry.Insight = insight
	entry.DominantEmotion = ""
	entry.Distortions = []string{}
	entry.Suggestions = []string{}
	if analysis != nil {
		entry.DominantEmotion = analysis.DominantEmotion
		entry.Distortions = analysis.Distortions
		entry.Suggestions = analysis.Suggestions
	}

	j.metrics.RecordAnalysis(result, j.now().Sub(start))

	j.logger.Info("Entry analyzed",
		zap.String("user_id", entry.UserID),
		zap.String("entry_id", entry.ID),
		zap.Int("risk", entry.RiskScore),
		zap.String("level", string(entry.RiskLevel)),
		zap.String("source", string(entry.RiskSource)),
		zap.String("trajectory", entry.Trajectory),
		zap.Bool("ai", analysis != nil))

	return &EntryResult{
		Entry:       entry,
		QuickScreen: screen,
		Analysis:    result,
		Alerts:      []*models.Alert{},
	}
}

// callAI returns nil whenever the AI is not configured or fails in any way
func (j *Journal) callAI(ctx context.Context, entry *models.Entry, history []*models.Entry) *models.AIAnalysis {
	if j.ai == nil {
		return nil
	}

	req := models.AnalysisRequest{Title: entry.Title, Content: entry.Content}
	for _, h := range history {
		req.History = append(req.History, models.HistoryItem{Date: h.CreatedAt, Mood: h.Mood, Emotion: h.DominantEmotion})
	}

	aiCtx, cancel := context.WithTimeout(ctx, j.aiTimeout)
	defer cancel()

	analysis, err := j.ai.Analyze(aiCtx, req)
	j.metrics.RecordAIRequest(err)
	if err != nil {
		j.logger.Error("AI analysis unavailable, using lexicon only",
			zap.String("entry_id", entry.ID),
			zap.Error(err))
		return nil
	}
	return analysis
}

// generateAlerts never fails the caller; the entry is already saved.
// history is what the entry was assessed against, so reanalysis never looks at later entries.
func (j *Journal) generateAlerts(ctx context.Context, entry *models.Entry, history []*models.Entry) []*models.Alert {
	created, err := j.alerts.CheckAndGenerateAlerts(ctx, entry.UserID, entry, history)
	if err != nil {
		j.logger.Error("Alert generation failed",
			zap.String("user_id", entry.UserID),
			zap.String("entry_id", entry.ID),
			zap.Error(err))
	}
	j.metrics.RecordAlerts(created)
	if created == nil {
		created = []*models.Alert{}
	}
	return created
}

func requestedMood(raw string) (models.Mood, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	mood, ok := models.ParseMood(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown mood %q", ErrInvalidEntry, raw)
	}
	return mood, nil
}

func mergePhrases(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
