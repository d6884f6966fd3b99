package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"moodrisk/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "moodrisk.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(id, userID string, at time.Time) *models.Entry {
	return &models.Entry{
		ID:               id,
		UserID:           userID,
		Title:            "Day " + id,
		Content:          "some words",
		Mood:             models.MoodCalm,
		RiskScore:        3,
		RiskLevel:        models.RiskLow,
		RiskSource:       models.SourceLexiconOnly,
		LexiconRiskScore: 3,
		AIRiskScore:      models.AIUnavailable,
		VAD:              models.VAD{Valence: 0.7, Arousal: 0.3, Dominance: 0.6},
		Trajectory:       models.TrajectoryStable,
		Distortions:      []string{"labeling"},
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

func TestMigrateDB_Idempotent(t *testing.T) {
	db := newTestDB(t)
	assert.NoError(t, MigrateDB(db, zap.NewNop()))
}

func TestEntryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())

	at := time.Date(2025, 5, 1, 8, 30, 0, 0, time.UTC)
	entry := newEntry("e1", "u1", at)
	entry.CrisisKeywords = []string{"hopeless"}
	entry.SafetyTriggered = true
	entry.Suggestions = []string{"Call a friend"}
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.Get(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, entry.Title, got.Title)
	assert.Equal(t, models.MoodCalm, got.Mood)
	assert.Equal(t, models.AIUnavailable, got.AIRiskScore)
	assert.Equal(t, entry.VAD, got.VAD)
	assert.Equal(t, []string{"hopeless"}, got.CrisisKeywords)
	assert.Equal(t, []string{"labeling"}, got.Distortions)
	assert.Equal(t, []string{"Call a friend"}, got.Suggestions)
	assert.True(t, got.SafetyTriggered)
	assert.True(t, at.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, "someone-else", "e1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEntryRepository_EmptyListsStayEmpty(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())

	entry := newEntry("e1", "u1", time.Now())
	entry.Distortions = nil
	require.NoError(t, repo.Create(ctx, entry))

	got, err := repo.Get(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.NotNil(t, got.Distortions)
	assert.Empty(t, got.Distortions)
}

func TestEntryRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())

	entry := newEntry("e1", "u1", time.Now())
	require.NoError(t, repo.Create(ctx, entry))

	entry.RiskScore = 9
	entry.RiskLevel = models.RiskCrisis
	entry.Insight = "updated"
	require.NoError(t, repo.Update(ctx, entry))

	got, err := repo.Get(ctx, "u1", "e1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.RiskScore)
	assert.Equal(t, models.RiskCrisis, got.RiskLevel)
	assert.Equal(t, "updated", got.Insight)

	entry.UserID = "intruder"
	assert.ErrorIs(t, repo.Update(ctx, entry), ErrNotFound)
}

func TestEntryRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"e1", "e2", "e3", "e4"} {
		require.NoError(t, repo.Create(ctx, newEntry(id, "u1", base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Create(ctx, newEntry("other", "u2", base)))

	recent, err := repo.RecentEntries(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"e4", "e3", "e2"}, ids(recent))

	all, err := repo.ListByUser(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	page, err := repo.ListByUser(ctx, "u1", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"e2", "e1"}, ids(page))

	since, err := repo.Since(ctx, "u1", base.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"e3", "e4"}, ids(since))
}

func TestEntryRepository_SameTimestampKeepsInsertOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewEntryRepository(newTestDB(t), zap.NewNop())

	at := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, newEntry("first", "u1", at)))
	require.NoError(t, repo.Create(ctx, newEntry("second", "u1", at)))

	recent, err := repo.RecentEntries(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, ids(recent))
}

func ids(entries []*models.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestAlertRepository(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	entries := NewEntryRepository(db, zap.NewNop())
	alerts := NewAlertRepository(db, zap.NewNop())

	require.NoError(t, entries.Create(ctx, newEntry("e1", "u1", time.Now())))
	require.NoError(t, entries.Create(ctx, newEntry("e2", "u2", time.Now())))

	e1, e2 := "e1", "e2"
	first := &models.Alert{UserID: "u1", Type: models.AlertHighRisk, Message: "high", TriggerEntryID: &e1}
	created, err := alerts.CreateAlert(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	dup := &models.Alert{UserID: "u1", Type: models.AlertHighRisk, Message: "again", TriggerEntryID: &e1}
	created, err = alerts.CreateAlert(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)

	second := &models.Alert{UserID: "u1", Type: models.AlertCrisisKeywords, Message: "crisis", TriggerEntryID: &e1,
		CreatedAt: time.Now().Add(time.Minute)}
	_, err = alerts.CreateAlert(ctx, second)
	require.NoError(t, err)

	foreign := &models.Alert{UserID: "u2", Type: models.AlertHighRisk, Message: "theirs", TriggerEntryID: &e2}
	_, err = alerts.CreateAlert(ctx, foreign)
	require.NoError(t, err)

	list, err := alerts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.AlertCrisisKeywords, list[0].Type)
	assert.Equal(t, "e1", *list[0].TriggerEntryID)
	assert.False(t, list[0].IsRead)

	count, err := alerts.CountUnread(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// another user's alert is invisible
	assert.ErrorIs(t, alerts.MarkRead(ctx, "u1", foreign.ID), ErrNotFound)
	assert.ErrorIs(t, alerts.MarkRead(ctx, "u1", 9999), ErrNotFound)

	require.NoError(t, alerts.MarkRead(ctx, "u1", first.ID))
	require.NoError(t, alerts.MarkRead(ctx, "u1", first.ID))

	unread, err := alerts.ListUnread(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].ID)

	n, err := alerts.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = alerts.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// marking read never deletes
	list, err = alerts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	count, err = alerts.CountUnread(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestAlertRepository_NoTriggerEntry(t *testing.T) {
	ctx := context.Background()
	alerts := NewAlertRepository(newTestDB(t), zap.NewNop())

	for i := 0; i < 2; i++ {
		created, err := alerts.CreateAlert(ctx, &models.Alert{UserID: "u1", Type: models.AlertDecliningTrajectory, Message: "m"})
		require.NoError(t, err)
		assert.True(t, created)
	}

	list, err := alerts.ListByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Nil(t, list[0].TriggerEntryID)
}
