package models

// RiskLevel buckets a 0-100 risk probability.
type RiskLevel string

const (
	RiskLevelVeryLow  RiskLevel = "very_low"
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelVeryHigh RiskLevel = "very_high"
)

// Valid reports whether the level is one of the known buckets.
func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLevelVeryLow, RiskLevelLow, RiskLevelMedium, RiskLevelHigh, RiskLevelVeryHigh:
		return true
	}
	return false
}

// Elevated is true for levels that require an intervention.
func (l RiskLevel) Elevated() bool {
	return l == RiskLevelHigh || l == RiskLevelVeryHigh
}

// PredictionType identifies what a PerformancePrediction estimates.
type PredictionType string

const (
	PredictionTypePerformance     PredictionType = "performance"
	PredictionTypeDropoutRisk     PredictionType = "dropout_risk"
	PredictionTypeLearningOutcome PredictionType = "learning_outcome"
	PredictionTypeCompletionTime  PredictionType = "completion_time"
	PredictionTypeResourceUsage   PredictionType = "resource_usage"
)

// PredictionTypes lists every supported prediction type.
var PredictionTypes = []PredictionType{
	PredictionTypePerformance,
	PredictionTypeDropoutRisk,
	PredictionTypeLearningOutcome,
	PredictionTypeCompletionTime,
	PredictionTypeResourceUsage,
}

// Valid reports whether the type is supported.
func (t PredictionType) Valid() bool {
	for _, known := range PredictionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// OutcomeType identifies the outcome a forecast targets.
type OutcomeType string

const (
	OutcomeTypeCourseCompletion  OutcomeType = "course_completion"
	OutcomeTypeSkillMastery      OutcomeType = "skill_mastery"
	OutcomeTypeGradeAchievement  OutcomeType = "grade_achievement"
	OutcomeTypeCertificationPass OutcomeType = "certification"
)

// OutcomeTypes lists every supported outcome type.
var OutcomeTypes = []OutcomeType{
	OutcomeTypeCourseCompletion,
	OutcomeTypeSkillMastery,
	OutcomeTypeGradeAchievement,
	OutcomeTypeCertificationPass,
}

// Valid reports whether the outcome type is supported.
func (t OutcomeType) Valid() bool {
	for _, known := range OutcomeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ResourceType identifies the kind of resource an optimization targets.
type ResourceType string

const (
	ResourceTypeCourse           ResourceType = "course"
	ResourceTypeLesson           ResourceType = "lesson"
	ResourceTypeInstructor       ResourceType = "instructor"
	ResourceTypeStudyGroup       ResourceType = "study_group"
	ResourceTypeLearningMaterial ResourceType = "learning_material"
)

// ResourceTypes lists every supported resource type.
var ResourceTypes = []ResourceType{
	ResourceTypeCourse,
	ResourceTypeLesson,
	ResourceTypeInstructor,
	ResourceTypeStudyGroup,
	ResourceTypeLearningMaterial,
}

// Valid reports whether the resource type is supported.
func (t ResourceType) Valid() bool {
	for _, known := range ResourceTypes {
		if t == known {
			return true
		}
	}
	return false
}

// InterventionType names a corrective action.
type InterventionType string

const (
	InterventionTutorSupport    InterventionType = "tutor_support"
	InterventionContentReview   InterventionType = "content_review"
	InterventionMotivation      InterventionType = "motivation"
	InterventionPeerSupport     InterventionType = "peer_support"
	InterventionStudyPlan       InterventionType = "study_plan"
	InterventionAttendanceCheck InterventionType = "attendance_outreach"
	InterventionStudySkills     InterventionType = "study_skills"
)

// InterventionStatus is a state of the intervention lifecycle.
type InterventionStatus string

const (
	InterventionStatusPending    InterventionStatus = "pending"
	InterventionStatusScheduled  InterventionStatus = "scheduled"
	InterventionStatusInProgress InterventionStatus = "in_progress"
	InterventionStatusCompleted  InterventionStatus = "completed"
	InterventionStatusCancelled  InterventionStatus = "cancelled"
	InterventionStatusDeferred   InterventionStatus = "deferred"
)

// OpenInterventionStatuses are statuses that still expect work.
var OpenInterventionStatuses = []InterventionStatus{
	InterventionStatusPending,
	InterventionStatusScheduled,
	InterventionStatusInProgress,
	InterventionStatusDeferred,
}

// Terminal reports whether no further transition is possible.
func (s InterventionStatus) Terminal() bool {
	return s == InterventionStatusCompleted || s == InterventionStatusCancelled
}

// InterventionOutcome records how a completed intervention went.
type InterventionOutcome string

const (
	OutcomeSuccessful          InterventionOutcome = "successful"
	OutcomePartiallySuccessful InterventionOutcome = "partially_successful"
	OutcomeUnsuccessful        InterventionOutcome = "unsuccessful"
	OutcomeInconclusive        InterventionOutcome = "inconclusive"
)

// Valid reports whether the outcome is known.
func (o InterventionOutcome) Valid() bool {
	switch o {
	case OutcomeSuccessful, OutcomePartiallySuccessful, OutcomeUnsuccessful, OutcomeInconclusive:
		return true
	}
	return false
}
