// Package trajectory classifies a user's recent mood sequence and turns risk and sustained
// decline into alerts.
package trajectory

import (
	"math"

	"moodrisk/internal/models"
)

const (
	// Window is the number of most recent entries a trajectory is computed over
	Window = 10
	// shiftThreshold is the gap between half averages that counts as a change
	shiftThreshold = 0.5
)

var moodScores = map[models.Mood]int{
	models.MoodHappy:      2,
	models.MoodJoyful:     2,
	models.MoodExcited:    2,
	models.MoodCalm:       1,
	models.MoodContent:    1,
	models.MoodEnergetic:  1,
	models.MoodProductive: 1,
	models.MoodNeutral:    0,
	models.MoodAnxious:    -1,
	models.MoodSad:        -2,
	models.MoodAngry:      -2,
}

// MoodScore maps a mood onto [-2,2]; unknown or empty moods are 0
func MoodScore(mood models.Mood) int {
	return moodScores[mood]
}

// Classify compares the recent half of moods (most recent first) with the older half.
// Only the first Window moods are used. With an odd count the older half takes the extra entry,
// and a single entry is compared with itself.
func Classify(moods []models.Mood) models.TrajectoryResult {
	if len(moods) == 0 {
		return models.TrajectoryResult{
			Trajectory: models.TrajectoryStable,
			Confidence: 0,
			Message:    "Not enough data",
		}
	}
	if len(moods) > Window {
		moods = moods[:Window]
	}

	scores := make([]int, len(moods))
	for i, m := range moods {
		scores[i] = MoodScore(m)
	}

	var recent, older []int
	if len(scores) == 1 {
		recent, older = scores, scores
	} else {
		half := len(scores) / 2
		recent, older = scores[:half], scores[half:]
	}

	recentAvg := mean(recent)
	olderAvg := mean(older)

	label := models.TrajectoryStable
	switch {
	case recentAvg > olderAvg+shiftThreshold:
		label = models.TrajectoryImproving
	case recentAvg < olderAvg-shiftThreshold:
		label = models.TrajectoryDeclining
	}

	return models.TrajectoryResult{
		Trajectory:      label,
		RecentScore:     round1(recentAvg),
		OlderScore:      round1(olderAvg),
		EntriesAnalyzed: len(scores),
		Confidence:      float64(len(scores)) / Window,
	}
}

// DecliningRun counts the contiguous declining labels at the head of labels (most recent first)
func DecliningRun(labels []string) int {
	run := 0
	for _, l := range labels {
		if l != models.TrajectoryDeclining {
			break
		}
		run++
	}
	return run
}

func mean(xs []int) float64 {
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
