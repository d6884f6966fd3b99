package trajectory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moodrisk/internal/models"

	"go.uber.org/zap"
)

const (
	// recentScan is how many of the latest entries the alert policy looks at
	recentScan = 5
	// minDecliningRun is the run of consecutive declining entries that raises an alert
	minDecliningRun = 3
	// minDistortionHits is how many recent entries must share a distortion
	minDistortionHits = 3
)

// AlertStore persists alerts. CreateAlert reports false when an alert of the same type
// already exists for the trigger entry.
type AlertStore interface {
	CreateAlert(ctx context.Context, alert *models.Alert) (bool, error)
}

// AlertEngine applies the alert policy to freshly analyzed entries
type AlertEngine struct {
	alerts AlertStore
	logger *zap.Logger
	now    func() time.Time
}

// NewAlertEngine creates an alert engine
func NewAlertEngine(alerts AlertStore, logger *zap.Logger) *AlertEngine {
	return &AlertEngine{
		alerts: alerts,
		logger: logger,
		now:    time.Now,
	}
}

// CheckAndGenerateAlerts runs the policy for an entry that has already been saved.
// history holds the entries written before entry, most recent first; later entries must not
// be included or a reanalyzed entry would be judged on what came after it.
// It returns the alerts actually created; an error never means the entry itself is invalid.
func (e *AlertEngine) CheckAndGenerateAlerts(ctx context.Context, userID string, entry *models.Entry, history []*models.Entry) ([]*models.Alert, error) {
	var (
		candidates []*models.Alert
		errs       []error
	)

	if entry.SafetyTriggered {
		candidates = append(candidates, e.newAlert(userID, entry, models.AlertCrisisKeywords,
			"Your latest entry contains words that suggest you may be in crisis. "+
				"If you are in danger, please contact a crisis line or emergency services right away."))
	}

	if entry.RiskScore >= models.HighRiskThreshold {
		candidates = append(candidates, e.newAlert(userID, entry, models.AlertHighRisk,
			fmt.Sprintf("Your latest entry has a high mental health concern score (%d/10). "+
				"Consider reaching out to someone you trust or a mental health professional.", entry.RiskScore)))
	}

	recent := scanWindow(entry, history)

	if entry.Trajectory == models.TrajectoryDeclining {
		labels := make([]string, len(recent))
		for i, r := range recent {
			labels[i] = r.Trajectory
		}
		if run := DecliningRun(labels); run >= minDecliningRun {
			candidates = append(candidates, e.newAlert(userID, entry, models.AlertDecliningTrajectory,
				fmt.Sprintf("Your emotional trajectory has been declining for %d consecutive entries. "+
					"It might be helpful to talk to someone about how you're feeling.", run)))
		}
	}
	if d, hits := RecurringDistortion(entry.Distortions, recent); hits >= minDistortionHits {
		candidates = append(candidates, e.newAlert(userID, entry, models.AlertConsistentDistortion,
			fmt.Sprintf("The thinking pattern %q showed up in %d of your last %d entries. "+
				"Noticing it is a good first step toward challenging it.", d, hits, len(recent))))
	}

	var created []*models.Alert
	for _, alert := range candidates {
		ok, err := e.alerts.CreateAlert(ctx, alert)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create %s alert: %w", alert.Type, err))
			continue
		}
		if !ok {
			e.logger.Debug("Alert already exists for entry",
				zap.String("entry_id", entry.ID),
				zap.String("type", string(alert.Type)))
			continue
		}
		e.logger.Info("Generated alert",
			zap.String("user_id", userID),
			zap.String("entry_id", entry.ID),
			zap.String("type", string(alert.Type)))
		created = append(created, alert)
	}

	return created, errors.Join(errs...)
}

// RecurringDistortion finds the distortion of current that appears in the most recent entries.
// Matching ignores case and surrounding whitespace.
func RecurringDistortion(current []string, recent []*models.Entry) (string, int) {
	best, bestHits := "", 0
	for _, d := range current {
		key := normalizeDistortion(d)
		if key == "" {
			continue
		}
		hits := 0
		for _, r := range recent {
			for _, other := range r.Distortions {
				if normalizeDistortion(other) == key {
					hits++
					break
				}
			}
		}
		if hits > bestHits {
			best, bestHits = key, hits
		}
	}
	return best, bestHits
}

func normalizeDistortion(d string) string {
	return strings.ToLower(strings.TrimSpace(d))
}

// scanWindow is entry followed by the newest of its predecessors, recentScan entries at most
func scanWindow(entry *models.Entry, history []*models.Entry) []*models.Entry {
	recent := make([]*models.Entry, 0, recentScan)
	recent = append(recent, entry)
	for _, h := range history {
		if len(recent) == recentScan {
			break
		}
		if h.ID != entry.ID {
			recent = append(recent, h)
		}
	}
	return recent
}

func (e *AlertEngine) newAlert(userID string, entry *models.Entry, kind models.AlertType, message string) *models.Alert {
	id := entry.ID
	return &models.Alert{
		UserID:         userID,
		Type:           kind,
		Message:        message,
		TriggerEntryID: &id,
		CreatedAt:      e.now().UTC(),
	}
}
