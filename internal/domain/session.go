package domain

import "time"

// WorkoutSession is a time-bounded bucket of one user's workout-log messages.
// Duration, calories and intensity stay nil until the aggregation pass
// finalizes the session.
type WorkoutSession struct {
	ID             string
	UserID         string
	ActivityType   *string
	DurationMin    *float64
	CaloriesBurnt  *float64
	IntensityScore *float64
	CreatedAt      time.Time
}

// Completed reports whether the session has been finalized by the
// aggregation pass.
func (s WorkoutSession) Completed() bool {
	return s.DurationMin != nil
}

// PendingSession is a scan result: a session whose raw-message count exceeds
// its processed-message count. Counts are compared at the store level.
type PendingSession struct {
	SessionID      string
	UserID         string
	RawCount       int
	ProcessedCount int
}

// Exercise is one parsed movement belonging to a workout session. The full
// exercise set for a session is replaced wholesale on every successful
// extraction run.
type Exercise struct {
	ID          string
	SessionID   string
	Name        string
	WeightValue float64
	WeightUnit  string
	Sets        int
	Reps        int
	MuscleGroup *string
}

// SessionDigest is one completed session with its exercises and the owning
// user's messaging address, as read by the recap jobs.
type SessionDigest struct {
	SessionID    string
	UserID       string
	PhoneNumber  string
	ActivityType *string
	DurationMin  *float64
	CreatedAt    time.Time
	Exercises    []Exercise
}

// SessionMetrics holds the values derived from one extraction run.
type SessionMetrics struct {
	DurationMin    float64
	CaloriesBurnt  float64
	IntensityScore float64
}

// DashboardDetails is the denormalized per-user rollup. Safe to fully
// recompute and upsert.
type DashboardDetails struct {
	UserID           string
	FitnessScore     int
	HasFitnessScore  bool
	InitialWeight    float64
	CurrentWeight    float64
	GoalWeight       float64
	AllTimeDuration  float64
	LastWeekDuration float64
	AvgWeekDuration  float64
	UpdatedAt        time.Time
}

// WeekStreak summarizes the current calendar week's workout days,
// Monday-indexed.
type WeekStreak struct {
	Days          [7]bool
	TotalSessions int
	StreakDays    int
	WeekStart     time.Time
}

// PaymentStatus enumerates subscription payment states.
type PaymentStatus string

const (
	PaymentActive    PaymentStatus = "active"
	PaymentInactive  PaymentStatus = "inactive"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentFailed    PaymentStatus = "failed"
)

// PaymentRecord is one subscription payment event from the gateway.
type PaymentRecord struct {
	ID             string
	UserID         string
	SubscriptionID string
	ProductID      string
	Amount         float64
	Currency       string
	Status         PaymentStatus
	CreatedAt      time.Time
}
