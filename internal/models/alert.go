package models

import "time"

// AlertType identifies the pattern that raised an alert
type AlertType string

const (
	AlertHighRisk             AlertType = "HIGH_RISK"             // risk score >= 7
	AlertDecliningTrajectory  AlertType = "DECLINING_TRAJECTORY"  // 3+ consecutive declining entries
	AlertConsistentDistortion AlertType = "CONSISTENT_DISTORTION" // same distortion in 3+ recent entries
	AlertCrisisKeywords       AlertType = "CRISIS_KEYWORDS"       // crisis safety layer matched
)

// Alert is an append-only user notification
type Alert struct {
	ID             int64     `json:"id" db:"id"`
	UserID         string    `json:"-" db:"user_id"`
	Type           AlertType `json:"type" db:"type"`
	Message        string    `json:"message" db:"message"`
	IsRead         bool      `json:"is_read" db:"is_read"`
	TriggerEntryID *string   `json:"trigger_entry_id,omitempty" db:"trigger_entry_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
