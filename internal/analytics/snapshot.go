// Package analytics holds the deterministic scoring used by the predictive engines:
// learning-signal aggregation, dropout risk scoring, trend fitting, forecast scenarios,
// accuracy reconciliation and resource efficiency.
package analytics

import (
	"sort"
	"time"

	"github.com/noah-isme/gema-analytics-api/internal/models"
)

// NeutralLevel stands in for an engagement or performance average that has no data.
const NeutralLevel = 50.0

// Snapshot aggregates the learning activity of one student over a window.
type Snapshot struct {
	From time.Time
	To   time.Time

	ActivityCount   int
	CompletedCount  int
	DiscussionCount int
	ActiveDays      int
	TotalMinutes    float64
	LastActivityAt  *time.Time

	HasScores bool
	AvgScore  float64

	HasEngagement bool
	AvgEngagement float64

	HasSessions       bool
	AvgSessionMinutes float64
	SessionCV         float64

	// DailyScores holds the average score of every active day, oldest first.
	DailyScores []float64
}

// BuildSnapshot aggregates raw activity rows that fall inside [from, to].
func BuildSnapshot(activities []models.LearningActivity, from, to time.Time) Snapshot {
	snapshot := Snapshot{From: from, To: to}

	var scores, engagement, sessions []float64
	days := map[string][]float64{}
	activeDays := map[string]struct{}{}

	for _, activity := range activities {
		if activity.OccurredAt.Before(from) || activity.OccurredAt.After(to) {
			continue
		}

		snapshot.ActivityCount++
		day := activity.OccurredAt.UTC().Format("2006-01-02")
		activeDays[day] = struct{}{}

		if activity.Completed {
			snapshot.CompletedCount++
		}
		if activity.ActivityType == models.ActivityDiscussionPost {
			snapshot.DiscussionCount++
		}
		if activity.DurationMinutes > 0 {
			sessions = append(sessions, activity.DurationMinutes)
			snapshot.TotalMinutes += activity.DurationMinutes
		}
		if activity.Score != nil {
			score := clamp(*activity.Score, 0, 100)
			scores = append(scores, score)
			days[day] = append(days[day], score)
		}
		if activity.EngagementScore != nil {
			engagement = append(engagement, clamp(*activity.EngagementScore, 0, 100))
		}
		if snapshot.LastActivityAt == nil || activity.OccurredAt.After(*snapshot.LastActivityAt) {
			occurred := activity.OccurredAt
			snapshot.LastActivityAt = &occurred
		}
	}

	snapshot.ActiveDays = len(activeDays)

	if len(scores) > 0 {
		snapshot.HasScores = true
		snapshot.AvgScore = mean(scores)
	}
	if len(engagement) > 0 {
		snapshot.HasEngagement = true
		snapshot.AvgEngagement = mean(engagement)
	}
	if len(sessions) > 0 {
		snapshot.HasSessions = true
		snapshot.AvgSessionMinutes = mean(sessions)
		snapshot.SessionCV = coefficientOfVariation(sessions)
	}

	keys := make([]string, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Strings(keys)
	for _, day := range keys {
		snapshot.DailyScores = append(snapshot.DailyScores, mean(days[day]))
	}

	return snapshot
}

// WindowDays is the length of the aggregation window in whole days.
func (s Snapshot) WindowDays() int {
	return int(s.To.Sub(s.From).Hours()/24 + 0.5)
}

// EngagementLevel returns the average engagement or the neutral level without data.
func (s Snapshot) EngagementLevel() float64 {
	if !s.HasEngagement {
		return NeutralLevel
	}
	return s.AvgEngagement
}

// PerformanceLevel returns the average score or the neutral level without data.
func (s Snapshot) PerformanceLevel() float64 {
	if !s.HasScores {
		return NeutralLevel
	}
	return s.AvgScore
}

// Features converts the snapshot into the feature record stored with predictions.
func (s Snapshot) Features() models.PredictionFeatures {
	return models.PredictionFeatures{
		WindowDays:        s.WindowDays(),
		ActivityCount:     s.ActivityCount,
		AvgEngagement:     Round2(s.EngagementLevel()),
		AvgPerformance:    Round2(s.PerformanceLevel()),
		AvgSessionMinutes: Round2(s.AvgSessionMinutes),
	}
}

// Metrics converts the snapshot into an intervention metric snapshot.
func (s Snapshot) Metrics(capturedAt time.Time) models.MetricSnapshot {
	return models.MetricSnapshot{
		AvgScore:          Round2(s.PerformanceLevel()),
		AvgEngagement:     Round2(s.EngagementLevel()),
		ActivityCount:     s.ActivityCount,
		AvgSessionMinutes: Round2(s.AvgSessionMinutes),
		CapturedAt:        capturedAt,
	}
}
