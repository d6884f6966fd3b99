package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"moodrisk/internal/models"
	"moodrisk/internal/repository"
	"moodrisk/internal/trajectory"

	"go.uber.org/zap"
)

// RiskPoint is one entry on the risk history chart
type RiskPoint struct {
	Date      string           `json:"date"`
	RiskScore int              `json:"risk_score"`
	RiskLevel models.RiskLevel `json:"risk_level"`
	Mood      models.Mood      `json:"mood"`
}

// Summary aggregates all entries of a user
type Summary struct {
	TotalEntries     int                 `json:"total_entries"`
	MoodDistribution map[models.Mood]int `json:"mood_distribution"`
	AverageRiskScore float64             `json:"average_risk_score"`
	MostCommonMood   models.Mood         `json:"most_common_mood"`
	EntriesThisWeek  int                 `json:"entries_this_week"`
}

// Analytics answers read-only questions about a user's history
type Analytics struct {
	entries repository.EntryRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalytics creates the analytics service
func NewAnalytics(entries repository.EntryRepository, logger *zap.Logger) *Analytics {
	return &Analytics{
		entries: entries,
		logger:  logger,
		now:     time.Now,
	}
}

// Trajectory classifies the user's latest entries
func (a *Analytics) Trajectory(ctx context.Context, userID string) (models.TrajectoryResult, error) {
	recent, err := a.entries.RecentEntries(ctx, userID, trajectory.Window)
	if err != nil {
		return models.TrajectoryResult{}, fmt.Errorf("failed to load entries: %w", err)
	}

	moods := make([]models.Mood, len(recent))
	for i, e := range recent {
		moods[i] = e.Mood
	}
	return trajectory.Classify(moods), nil
}

// RiskHistory lists risk scores of entries created after since, oldest first
func (a *Analytics) RiskHistory(ctx context.Context, userID string, since time.Time) ([]RiskPoint, error) {
	entries, err := a.entries.Since(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	points := make([]RiskPoint, 0, len(entries))
	for _, e := range entries {
		mood := e.Mood
		if mood == "" {
			mood = models.MoodNeutral
		}
		points = append(points, RiskPoint{
			Date:      e.CreatedAt.Format("2006-01-02"),
			RiskScore: e.RiskScore,
			RiskLevel: e.RiskLevel,
			Mood:      mood,
		})
	}
	return points, nil
}

// Summary computes totals over every entry of the user
func (a *Analytics) Summary(ctx context.Context, userID string) (*Summary, error) {
	entries, err := a.entries.ListByUser(ctx, userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	s := &Summary{
		TotalEntries:     len(entries),
		MoodDistribution: map[models.Mood]int{},
		MostCommonMood:   models.MoodNeutral,
	}

	weekAgo := a.now().Add(-7 * 24 * time.Hour)
	riskSum := 0
	for _, e := range entries {
		if e.Mood != "" {
			s.MoodDistribution[e.Mood]++
		}
		riskSum += e.RiskScore
		if e.CreatedAt.After(weekAgo) {
			s.EntriesThisWeek++
		}
	}
	if len(entries) > 0 {
		s.AverageRiskScore = math.Round(float64(riskSum)/float64(len(entries))*10) / 10
	}

	best := 0
	for mood, count := range s.MoodDistribution {
		// ties go to the alphabetically first mood so the answer is stable
		if count > best || (count == best && mood < s.MostCommonMood) {
			best, s.MostCommonMood = count, mood
		}
	}

	return s, nil
}

// DistortionFrequency counts cognitive distortions across all entries, case-insensitively
func (a *Analytics) DistortionFrequency(ctx context.Context, userID string) (map[string]int, error) {
	entries, err := a.entries.ListByUser(ctx, userID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	freq := map[string]int{}
	for _, e := range entries {
		for _, d := range e.Distortions {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				freq[d]++
			}
		}
	}
	return freq, nil
}

// TopDistortions orders a frequency table by count, then name
func TopDistortions(freq map[string]int) []string {
	names := make([]string, 0, len(freq))
	for name := range freq {
		names = append(names, name)
	}
	sort.Slice(names, func(i, k int) bool {
		if freq[names[i]] != freq[names[k]] {
			return freq[names[i]] > freq[names[k]]
		}
		return names[i] < names[k]
	})
	return names
}
