package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"moodrisk/internal/ensemble"
	"moodrisk/internal/lexicon"
	"moodrisk/internal/metrics"
	"moodrisk/internal/models"
	"moodrisk/internal/repository"
	"moodrisk/internal/safety"
	"moodrisk/internal/trajectory"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testLexicon = `{
  "words": {
    "calm": {"v": 0.8, "a": 0.2, "d": 0.6},
    "productive": {"v": 0.75, "a": 0.55, "d": 0.7},
    "sad": {"v": 0.1, "a": 0.3, "d": 0.2}
  },
  "crisis_keywords": {
    "hopeless": {"v": 0.04, "a": 0.3, "d": 0.05},
    "want to die": {}
  }
}`

type fakeAI struct {
	mu       sync.Mutex
	analysis *models.AIAnalysis
	err      error
	requests []models.AnalysisRequest
}

func (f *fakeAI) Analyze(_ context.Context, req models.AnalysisRequest) (*models.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	copied := *f.analysis
	return &copied, nil
}

func (f *fakeAI) set(analysis *models.AIAnalysis, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysis, f.err = analysis, err
}

type fixture struct {
	journal   *Journal
	analytics *Analytics
	alerts    *Alerts
	entries   repository.EntryRepository
	metrics   *metrics.Collector
	clock     time.Time
}

func newFixture(t *testing.T, ai AIClient) *fixture {
	t.Helper()
	logger := zap.NewNop()

	lex, err := lexicon.Load(strings.NewReader(testLexicon))
	require.NoError(t, err)

	db, err := repository.NewSQLiteDB(filepath.Join(t.TempDir(), "journal.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	entries := repository.NewEntryRepository(db, logger)
	alertRepo := repository.NewAlertRepository(db, logger)
	collector := metrics.NewCollector("test")

	f := &fixture{
		entries:   entries,
		analytics: NewAnalytics(entries, logger),
		alerts:    NewAlerts(alertRepo, logger),
		metrics:   collector,
		clock:     time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	f.journal = NewJournal(
		ensemble.NewCombiner(lexicon.NewAnalyzer(lex), logger),
		ai,
		entries,
		trajectory.NewAlertEngine(alertRepo, logger),
		collector,
		time.Second,
		logger,
	)
	// every call moves the clock forward so entries have distinct timestamps
	f.journal.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	f.analytics.now = func() time.Time { return f.clock }
	return f
}

func intPtr(i int) *int { return &i }

func alertTypes(alerts []*models.Alert) []models.AlertType {
	out := []models.AlertType{}
	for _, a := range alerts {
		out = append(out, a.Type)
	}
	return out
}

func TestCreateEntry_LexiconOnly(t *testing.T) {
	f := newFixture(t, nil)

	res, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{
		Title:   "Good day",
		Content: "I had a calm and productive day",
	})
	require.NoError(t, err)

	e := res.Entry
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, 2, e.RiskScore)
	assert.Equal(t, models.RiskLow, e.RiskLevel)
	assert.Equal(t, models.SourceLexiconOnly, e.RiskSource)
	assert.Equal(t, models.AIUnavailable, e.AIRiskScore)
	assert.Equal(t, models.MoodNeutral, e.Mood)
	assert.Equal(t, models.TrajectoryStable, e.Trajectory)
	assert.False(t, e.SafetyTriggered)
	assert.Empty(t, res.Alerts)
	assert.Equal(t, 2, res.QuickScreen.RiskScore)

	stored, err := f.entries.Get(context.Background(), "u1", e.ID)
	require.NoError(t, err)
	assert.Equal(t, e.RiskScore, stored.RiskScore)
	assert.Equal(t, "Good day", stored.Title)
}

func TestCreateEntry_CrisisOverridesLowAIScore(t *testing.T) {
	ai := &fakeAI{analysis: &models.AIAnalysis{
		RiskScore:        intPtr(1),
		VAD:              &models.VAD{Valence: 0.8, Arousal: 0.2, Dominance: 0.7},
		DominantEmotion:  "calm",
		NarrativeInsight: "You seem settled.",
	}}
	f := newFixture(t, ai)

	res, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "Honestly I just want to die"})
	require.NoError(t, err)

	e := res.Entry
	assert.GreaterOrEqual(t, e.RiskScore, 9)
	assert.Equal(t, models.RiskCrisis, e.RiskLevel)
	assert.True(t, e.SafetyTriggered)
	assert.True(t, res.Analysis.CrisisOverride)
	assert.Equal(t, 1, e.AIRiskScore)
	assert.Equal(t, "You seem settled."+safety.Annotation, e.Insight)
	assert.Contains(t, e.CrisisKeywords, "want to die")
	assert.Equal(t, models.MoodCalm, e.Mood)
	assert.ElementsMatch(t, []models.AlertType{models.AlertCrisisKeywords, models.AlertHighRisk}, alertTypes(res.Alerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CrisisOverrides))
}

func TestCreateEntry_AIFailureStillFlagsCrisis(t *testing.T) {
	ai := &fakeAI{err: errors.New("all providers failed")}
	f := newFixture(t, ai)

	res, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "I might hurt myself tonight"})
	require.NoError(t, err)

	e := res.Entry
	assert.GreaterOrEqual(t, e.RiskScore, 9)
	assert.Equal(t, safety.FallbackMessage, e.Insight)
	assert.Equal(t, models.SourceLexiconOnly, e.RiskSource)
	assert.Equal(t, models.AIUnavailable, e.AIRiskScore)
	assert.Equal(t, models.MoodNeutral, e.Mood)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AIRequests.WithLabelValues("failure")))

	unread, err := f.alerts.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), unread)
}

func TestCreateEntry_UsesAIAnalysis(t *testing.T) {
	ai := &fakeAI{analysis: &models.AIAnalysis{
		RiskScore:       intPtr(5),
		VAD:             &models.VAD{Valence: 0.3, Arousal: 0.4, Dominance: 0.4},
		DominantEmotion: "frustration",
		Distortions:     []string{"all-or-nothing"},
		Suggestions:     []string{"Write down one thing that went right"},
	}}
	f := newFixture(t, ai)

	res, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "Nothing ever goes right at work"})
	require.NoError(t, err)

	e := res.Entry
	assert.Equal(t, 5, e.RiskScore)
	assert.Equal(t, models.SourceAI, e.RiskSource)
	assert.Equal(t, models.MoodAngry, e.Mood)
	assert.Equal(t, "frustration", e.DominantEmotion)
	assert.Equal(t, []string{"all-or-nothing"}, e.Distortions)
	// fewer than three lexicon matches: the AI VAD is used as is
	assert.Equal(t, *ai.analysis.VAD, e.VAD)
}

func TestCreateEntry_UserMoodWins(t *testing.T) {
	ai := &fakeAI{analysis: &models.AIAnalysis{RiskScore: intPtr(2), DominantEmotion: "joy"}}
	f := newFixture(t, ai)

	res, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "meh", Mood: "anxious"})
	require.NoError(t, err)
	assert.Equal(t, models.MoodAnxious, res.Entry.Mood)
	// analysis still ran
	assert.Len(t, ai.requests, 1)
}

func TestCreateEntry_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "   "})
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = f.journal.CreateEntry(context.Background(), "u1", models.EntryRequest{Content: "hi", Mood: "GRUMPY"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestCreateEntry_HistoryIsSentToAI(t *testing.T) {
	ai := &fakeAI{analysis: &models.AIAnalysis{RiskScore: intPtr(2), DominantEmotion: "joy"}}
	f := newFixture(t, ai)
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three", "four"} {
		_, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: content})
		require.NoError(t, err)
	}

	last := ai.requests[len(ai.requests)-1]
	assert.Equal(t, "four", last.Content)
	require.Len(t, last.History, 3)
	assert.Equal(t, models.MoodHappy, last.History[0].Mood)
	assert.Equal(t, "joy", last.History[0].Emotion)
}

func TestCreateEntry_DecliningTrajectoryAlert(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	moods := []string{"HAPPY", "HAPPY", "HAPPY", "HAPPY", "SAD", "SAD", "SAD"}
	var results []*EntryResult
	for _, m := range moods {
		res, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "another day", Mood: m})
		require.NoError(t, err)
		results = append(results, res)
	}

	assert.Equal(t, models.TrajectoryStable, results[3].Entry.Trajectory)
	for _, r := range results[4:] {
		assert.Equal(t, models.TrajectoryDeclining, r.Entry.Trajectory)
	}
	assert.Empty(t, results[5].Alerts)
	require.Len(t, results[6].Alerts, 1)
	assert.Equal(t, models.AlertDecliningTrajectory, results[6].Alerts[0].Type)
	assert.Contains(t, results[6].Alerts[0].Message, "3 consecutive entries")

	traj, err := f.analytics.Trajectory(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.TrajectoryDeclining, traj.Trajectory)
	assert.Equal(t, 7, traj.EntriesAnalyzed)
}

func TestReanalyzeEntry(t *testing.T) {
	ai := &fakeAI{err: errors.New("timeout")}
	f := newFixture(t, ai)
	ctx := context.Background()

	first, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "I feel hopeless and want to die", Mood: "SAD"})
	require.NoError(t, err)
	require.Len(t, first.Alerts, 2)

	ai.set(&models.AIAnalysis{RiskScore: intPtr(10), NarrativeInsight: "Please reach out."}, nil)

	again, err := f.journal.ReanalyzeEntry(ctx, "u1", first.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Entry.ID, again.Entry.ID)
	assert.Equal(t, 10, again.Entry.RiskScore)
	assert.Equal(t, 10, again.Entry.AIRiskScore)
	assert.Equal(t, models.MoodSad, again.Entry.Mood)
	assert.Equal(t, "Please reach out."+safety.Annotation, again.Entry.Insight)
	// same entry, same alert types: nothing new
	assert.Empty(t, again.Alerts)

	all, err := f.alerts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.journal.ReanalyzeEntry(ctx, "u2", first.Entry.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReanalyzeEntry_JudgedOnEarlierEntriesOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var ids []string
	for _, m := range []string{"HAPPY", "HAPPY", "HAPPY", "HAPPY", "SAD", "SAD", "SAD", "SAD", "SAD"} {
		res, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "another day", Mood: m})
		require.NoError(t, err)
		ids = append(ids, res.Entry.ID)
	}

	before, err := f.alerts.List(ctx, "u1")
	require.NoError(t, err)

	// the first sad entry starts the decline; later entries must not count toward it
	res, err := f.journal.ReanalyzeEntry(ctx, "u1", ids[4])
	require.NoError(t, err)
	assert.Equal(t, models.TrajectoryDeclining, res.Entry.Trajectory)
	assert.Empty(t, res.Alerts)

	after, err := f.alerts.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, after, len(before))
	for _, a := range after {
		assert.NotEqual(t, ids[4], *a.TriggerEntryID)
	}
}

func TestAnalyzeRisk(t *testing.T) {
	f := newFixture(t, nil)

	r := f.journal.AnalyzeRisk(models.AnalyzeRequest{Text: "I want to end it all", AIRiskScore: intPtr(2)})
	assert.GreaterOrEqual(t, r.FinalRiskScore, 9)
	assert.True(t, r.CrisisOverride)
	assert.Equal(t, models.RiskCrisis, r.RiskLevel)

	r = f.journal.AnalyzeRisk(models.AnalyzeRequest{Text: "I had a calm and productive day"})
	assert.Equal(t, 2, r.FinalRiskScore)
	assert.Equal(t, models.SourceLexiconOnly, r.RiskSource)

	r = f.journal.AnalyzeRisk(models.AnalyzeRequest{
		Text:        "I had a calm and productive day",
		AIRiskScore: intPtr(2),
		AIVAD:       &models.VAD{Valence: 5, Arousal: 0.5, Dominance: 0.5},
	})
	assert.Nil(t, r.AIVAD)
	assert.Equal(t, models.AIUnavailable, r.VADImpliedRisk)
	assert.True(t, r.FinalVAD.InRange())
}

func TestAnalytics(t *testing.T) {
	ai := &fakeAI{analysis: &models.AIAnalysis{RiskScore: intPtr(3), Distortions: []string{"Labeling", "catastrophizing"}}}
	f := newFixture(t, ai)
	ctx := context.Background()

	for _, m := range []string{"CALM", "CALM", "SAD"} {
		_, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "words", Mood: m})
		require.NoError(t, err)
	}
	ai.set(&models.AIAnalysis{RiskScore: intPtr(6), Distortions: []string{"labeling"}}, nil)
	_, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "words", Mood: "SAD"})
	require.NoError(t, err)

	summary, err := f.analytics.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalEntries)
	assert.Equal(t, 2, summary.MoodDistribution[models.MoodCalm])
	assert.Equal(t, 2, summary.MoodDistribution[models.MoodSad])
	// tie between CALM and SAD resolves alphabetically
	assert.Equal(t, models.MoodCalm, summary.MostCommonMood)
	assert.Equal(t, 4, summary.EntriesThisWeek)
	// "words" has no lexicon match, so every entry is at least the neutral 4
	assert.Equal(t, 4.5, summary.AverageRiskScore)

	freq, err := f.analytics.DistortionFrequency(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"labeling": 4, "catastrophizing": 3}, freq)
	assert.Equal(t, []string{"labeling", "catastrophizing"}, TopDistortions(freq))

	history, err := f.analytics.RiskHistory(ctx, "u1", time.Time{})
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, 6, history[3].RiskScore)
	assert.Equal(t, "2025-06-01", history[0].Date)

	empty, err := f.analytics.Summary(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalEntries)
	assert.Equal(t, models.MoodNeutral, empty.MostCommonMood)
}

func TestAlerts_MarkRead(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.journal.CreateEntry(ctx, "u1", models.EntryRequest{Content: "I want to die"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Alerts)

	assert.ErrorIs(t, f.alerts.MarkRead(ctx, "u2", res.Alerts[0].ID), repository.ErrNotFound)
	require.NoError(t, f.alerts.MarkRead(ctx, "u1", res.Alerts[0].ID))

	unread, err := f.alerts.Unread(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, unread, len(res.Alerts)-1)

	_, err = f.alerts.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	n, err := f.alerts.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := f.alerts.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
