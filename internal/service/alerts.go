package service

import (
	"context"

	"moodrisk/internal/models"
	"moodrisk/internal/repository"

	"go.uber.org/zap"
)

// Alerts exposes a user's alerts. Nothing here deletes an alert.
type Alerts struct {
	repo   repository.AlertRepository
	logger *zap.Logger
}

// NewAlerts creates the alert service
func NewAlerts(repo repository.AlertRepository, logger *zap.Logger) *Alerts {
	return &Alerts{repo: repo, logger: logger}
}

func (s *Alerts) List(ctx context.Context, userID string) ([]*models.Alert, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Alerts) Unread(ctx context.Context, userID string) ([]*models.Alert, error) {
	return s.repo.ListUnread(ctx, userID)
}

func (s *Alerts) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkRead returns repository.ErrNotFound for alerts the user does not own
func (s *Alerts) MarkRead(ctx context.Context, userID string, alertID int64) error {
	return s.repo.MarkRead(ctx, userID, alertID)
}

// MarkAllRead is idempotent
func (s *Alerts) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Alerts marked read", zap.String("user_id", userID), zap.Int64("count", n))
	}
	return n, nil
}
