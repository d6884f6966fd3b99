package repository

import (
	"context"
	"fmt"
	"time"

	"moodrisk/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// AlertRepository stores user alerts. Alerts are never deleted, only marked read.
type AlertRepository interface {
	// CreateAlert inserts alert and fills its ID. It reports false when the trigger entry
	// already has an alert of the same type.
	CreateAlert(ctx context.Context, alert *models.Alert) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Alert, error)
	ListUnread(ctx context.Context, userID string) ([]*models.Alert, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID string, alertID int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type alertRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewAlertRepository creates an alert repository
func NewAlertRepository(db *sqlx.DB, logger *zap.Logger) AlertRepository {
	return &alertRepository{db: db, logger: logger}
}

func (r *alertRepository) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	alert.CreatedAt = alert.CreatedAt.UTC()

	query := `INSERT OR IGNORE INTO alerts (user_id, type, message, is_read, trigger_entry_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		alert.UserID, alert.Type, alert.Message, alert.IsRead, alert.TriggerEntryID, alert.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("failed to read alert id: %w", err)
	}
	alert.ID = id
	return true, nil
}

const alertColumns = `id, user_id, type, message, is_read, trigger_entry_id, created_at`

func (r *alertRepository) ListByUser(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	return r.selectAlerts(ctx, query, userID)
}

func (r *alertRepository) ListUnread(ctx context.Context, userID string) ([]*models.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ? AND is_read = 0 ORDER BY created_at DESC, id DESC`
	return r.selectAlerts(ctx, query, userID)
}

func (r *alertRepository) selectAlerts(ctx context.Context, query string, userID string) ([]*models.Alert, error) {
	alerts := []*models.Alert{}
	if err := r.db.SelectContext(ctx, &alerts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	for _, a := range alerts {
		a.CreatedAt = a.CreatedAt.UTC()
	}
	return alerts, nil
}

func (r *alertRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM alerts WHERE user_id = ? AND is_read = 0`, userID); err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}
	return count, nil
}

// MarkRead marks one alert read. Alerts of other users are reported as ErrNotFound.
func (r *alertRepository) MarkRead(ctx context.Context, userID string, alertID int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ? AND user_id = ?`, alertID, userID)
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead marks every unread alert of the user read and returns how many changed
func (r *alertRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark alerts read: %w", err)
	}
	return res.RowsAffected()
}
