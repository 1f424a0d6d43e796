package models

import "time"

// Activity types recorded by the learning platform.
const (
	ActivityLessonView     = "lesson_view"
	ActivityQuizAttempt    = "quiz_attempt"
	ActivitySubmission     = "assignment_submission"
	ActivityDiscussionPost = "discussion_post"
	ActivityVideoWatch     = "video_watch"
)

// LearningActivity is a single learning-signal row written by the LMS. The analytics
// engine only ever reads these.
type LearningActivity struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	StudentID       uint      `gorm:"index:idx_activity_student_time;not null" json:"student_id"`
	CourseID        *uint     `gorm:"index" json:"course_id,omitempty"`
	ActivityType    string    `gorm:"size:64;not null" json:"activity_type"`
	DurationMinutes float64   `json:"duration_minutes"`
	Score           *float64  `json:"score,omitempty"`
	EngagementScore *float64  `json:"engagement_score,omitempty"`
	Completed       bool      `json:"completed"`
	OccurredAt      time.Time `gorm:"index:idx_activity_student_time;not null" json:"occurred_at"`
}

// LearningOutcome is a realized result (final grade, completion) reported by the LMS.
type LearningOutcome struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	StudentID   uint       `gorm:"index;not null" json:"student_id"`
	CourseID    *uint      `gorm:"index" json:"course_id,omitempty"`
	Metric      string     `gorm:"size:64;not null" json:"metric"`
	Value       float64    `json:"value"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RecordedAt  time.Time  `gorm:"index;not null" json:"recorded_at"`
}

// ResourceUsageSample is an hourly utilization sample for a resource.
type ResourceUsageSample struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	ResourceType      ResourceType `gorm:"size:32;index:idx_usage_resource;not null" json:"resource_type"`
	ResourceID        uint         `gorm:"index:idx_usage_resource;not null" json:"resource_id"`
	UtilizationRate   float64      `json:"utilization_rate"`
	ActiveSessions    int          `json:"active_sessions"`
	AvgSessionMinutes float64      `json:"avg_session_minutes"`
	Satisfaction      *float64     `json:"satisfaction,omitempty"`
	Bottleneck        string       `gorm:"size:128" json:"bottleneck,omitempty"`
	SampledAt         time.Time    `gorm:"index;not null" json:"sampled_at"`
}
