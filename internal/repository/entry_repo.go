package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"moodrisk/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// EntryRepository stores analyzed journal entries
type EntryRepository interface {
	Create(ctx context.Context, entry *models.Entry) error
	Update(ctx context.Context, entry *models.Entry) error
	Get(ctx context.Context, userID, id string) (*models.Entry, error)
	// ListByUser returns entries newest first; limit <= 0 means no limit
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Entry, error)
	RecentEntries(ctx context.Context, userID string, limit int) ([]*models.Entry, error)
	// Since returns entries created after since, oldest first
	Since(ctx context.Context, userID string, since time.Time) ([]*models.Entry, error)
}

type entryRow struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	Title            string    `db:"title"`
	Content          string    `db:"content"`
	Mood             string    `db:"mood"`
	DominantEmotion  string    `db:"dominant_emotion"`
	RiskScore        int       `db:"risk_score"`
	RiskLevel        string    `db:"risk_level"`
	RiskSource       string    `db:"risk_source"`
	LexiconRiskScore int       `db:"lexicon_risk_score"`
	AIRiskScore      int       `db:"ai_risk_score"`
	Valence          float64   `db:"valence"`
	Arousal          float64   `db:"arousal"`
	Dominance        float64   `db:"dominance"`
	Trajectory       string    `db:"trajectory"`
	CrisisKeywords   string    `db:"crisis_keywords"`
	SafetyTriggered  bool      `db:"safety_triggered"`
	Distortions      string    `db:"distortions"`
	Suggestions      string    `db:"suggestions"`
	Insight          string    `db:"insight"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

const entryColumns = `id, user_id, title, content, mood, dominant_emotion, risk_score, risk_level, risk_source,
	lexicon_risk_score, ai_risk_score, valence, arousal, dominance, trajectory, crisis_keywords,
	safety_triggered, distortions, suggestions, insight, created_at, updated_at`

type entryRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewEntryRepository creates an entry repository
func NewEntryRepository(db *sqlx.DB, logger *zap.Logger) EntryRepository {
	return &entryRepository{db: db, logger: logger}
}

func (r *entryRepository) Create(ctx context.Context, entry *models.Entry) error {
	row, err := toRow(entry)
	if err != nil {
		return err
	}

	query := `INSERT INTO entries (` + entryColumns + `) VALUES (
		:id, :user_id, :title, :content, :mood, :dominant_emotion, :risk_score, :risk_level, :risk_source,
		:lexicon_risk_score, :ai_risk_score, :valence, :arousal, :dominance, :trajectory, :crisis_keywords,
		:safety_triggered, :distortions, :suggestions, :insight, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

func (r *entryRepository) Update(ctx context.Context, entry *models.Entry) error {
	row, err := toRow(entry)
	if err != nil {
		return err
	}

	query := `UPDATE entries SET
		title = :title, content = :content, mood = :mood, dominant_emotion = :dominant_emotion,
		risk_score = :risk_score, risk_level = :risk_level, risk_source = :risk_source,
		lexicon_risk_score = :lexicon_risk_score, ai_risk_score = :ai_risk_score,
		valence = :valence, arousal = :arousal, dominance = :dominance, trajectory = :trajectory,
		crisis_keywords = :crisis_keywords, safety_triggered = :safety_triggered,
		distortions = :distortions, suggestions = :suggestions, insight = :insight, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *entryRepository) Get(ctx context.Context, userID, id string) (*models.Entry, error) {
	var row entryRow
	query := `SELECT ` + entryColumns + ` FROM entries WHERE id = ? AND user_id = ?`
	if err := r.db.GetContext(ctx, &row, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return row.toEntry()
}

func (r *entryRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	return r.selectEntries(ctx, query, userID, limit, max(offset, 0))
}

func (r *entryRepository) RecentEntries(ctx context.Context, userID string, limit int) ([]*models.Entry, error) {
	return r.ListByUser(ctx, userID, limit, 0)
}

func (r *entryRepository) Since(ctx context.Context, userID string, since time.Time) ([]*models.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_id = ? AND created_at > ?
		ORDER BY created_at ASC, rowid ASC`
	return r.selectEntries(ctx, query, userID, since.UTC())
}

func (r *entryRepository) selectEntries(ctx context.Context, query string, args ...interface{}) ([]*models.Entry, error) {
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	entries := make([]*models.Entry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func toRow(e *models.Entry) (*entryRow, error) {
	keywords, err := marshalList(e.CrisisKeywords)
	if err != nil {
		return nil, err
	}
	distortions, err := marshalList(e.Distortions)
	if err != nil {
		return nil, err
	}
	suggestions, err := marshalList(e.Suggestions)
	if err != nil {
		return nil, err
	}

	return &entryRow{
		ID:               e.ID,
		UserID:           e.UserID,
		Title:            e.Title,
		Content:          e.Content,
		Mood:             string(e.Mood),
		DominantEmotion:  e.DominantEmotion,
		RiskScore:        e.RiskScore,
		RiskLevel:        string(e.RiskLevel),
		RiskSource:       string(e.RiskSource),
		LexiconRiskScore: e.LexiconRiskScore,
		AIRiskScore:      e.AIRiskScore,
		Valence:          e.VAD.Valence,
		Arousal:          e.VAD.Arousal,
		Dominance:        e.VAD.Dominance,
		Trajectory:       e.Trajectory,
		CrisisKeywords:   keywords,
		SafetyTriggered:  e.SafetyTriggered,
		Distortions:      distortions,
		Suggestions:      suggestions,
		Insight:          e.Insight,
		CreatedAt:        e.CreatedAt.UTC(),
		UpdatedAt:        e.UpdatedAt.UTC(),
	}, nil
}

func (row *entryRow) toEntry() (*models.Entry, error) {
	e := &models.Entry{
		ID:               row.ID,
		UserID:           row.UserID,
		Title:            row.Title,
		Content:          row.Content,
		Mood:             models.Mood(row.Mood),
		DominantEmotion:  row.DominantEmotion,
		RiskScore:        row.RiskScore,
		RiskLevel:        models.RiskLevel(row.RiskLevel),
		RiskSource:       models.RiskSource(row.RiskSource),
		LexiconRiskScore: row.LexiconRiskScore,
		AIRiskScore:      row.AIRiskScore,
		VAD:              models.VAD{Valence: row.Valence, Arousal: row.Arousal, Dominance: row.Dominance},
		Trajectory:       row.Trajectory,
		SafetyTriggered:  row.SafetyTriggered,
		Insight:          row.Insight,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}

	for _, f := range []struct {
		raw string
		dst *[]string
	}{
		{row.CrisisKeywords, &e.CrisisKeywords},
		{row.Distortions, &e.Distortions},
		{row.Suggestions, &e.Suggestions},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return nil, fmt.Errorf("entry %s: corrupt list column: %w", row.ID, err)
		}
	}
	return e, nil
}

func marshalList(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to encode list: %w", err)
	}
	return string(data), nil
}
