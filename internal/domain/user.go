// Package domain defines the business entities for the fitness tracker.
package domain

import (
	"errors"
	"time"
)

// ErrUserNotFound is returned when a user cannot be located.
var ErrUserNotFound = errors.New("user not found")

// User is one chat-bot user, keyed by their messaging address.
type User struct {
	ID              string
	PhoneNumber     string
	Name            string
	Paid            bool
	CreatedAt       time.Time
	LastInteraction time.Time
}

// ActivityLevel enumerates the onboarding activity choices.
type ActivityLevel string

const (
	ActivitySedentary ActivityLevel = "sedentary"
	ActivityLight     ActivityLevel = "light"
	ActivityModerate  ActivityLevel = "moderate"
	ActivityVery      ActivityLevel = "very"
	ActivityExtra     ActivityLevel = "extra"
)

// ActivityChoices maps activity labels to their user-facing descriptions.
var ActivityChoices = map[ActivityLevel]string{
	ActivitySedentary: "Sedentary (little or no exercise)",
	ActivityLight:     "Lightly Active (1-3 days/week)",
	ActivityModerate:  "Moderately Active (3-5 days/week)",
	ActivityVery:      "Very Active (6-7 days/week)",
	ActivityExtra:     "Extra Active (very active & physical job)",
}

// Goal enumerates the onboarding fitness-goal choices.
type Goal string

const (
	GoalLean     Goal = "lean"
	GoalAthletic Goal = "athletic"
	GoalBulk     Goal = "bulk"
)

// GoalChoices maps goal labels to their user-facing descriptions.
var GoalChoices = map[Goal]string{
	GoalLean:     "Lean (Slim and Defined)",
	GoalAthletic: "Athletic (Muscular and Balanced)",
	GoalBulk:     "Bulk (Large and Powerful)",
}

// ProfileSnapshot is an append-only record of the user's profile state at a
// point in time. New snapshots carry unset fields forward from the previous
// snapshot, so the latest row always represents the most complete known state.
type ProfileSnapshot struct {
	ID              string
	UserID          string
	HeightCm        *float64
	WeightKg        *float64
	Activity        *ActivityLevel
	BodyComposition *string
	Goal            *Goal
	BMI             *float64
	CreatedAt       time.Time
}

// Merge carries forward any field the receiver leaves unset from prev.
// prev may be nil for a user's first snapshot.
func (s *ProfileSnapshot) Merge(prev *ProfileSnapshot) {
	if prev == nil {
		return
	}
	if s.HeightCm == nil {
		s.HeightCm = prev.HeightCm
	}
	if s.WeightKg == nil {
		s.WeightKg = prev.WeightKg
	}
	if s.Activity == nil {
		s.Activity = prev.Activity
	}
	if s.BodyComposition == nil {
		s.BodyComposition = prev.BodyComposition
	}
	if s.Goal == nil {
		s.Goal = prev.Goal
	}
	if s.BMI == nil {
		s.BMI = prev.BMI
	}
}

// ComputeBMI refreshes the derived BMI when both measurements are present.
func (s *ProfileSnapshot) ComputeBMI() {
	if s.HeightCm == nil || s.WeightKg == nil || *s.HeightCm <= 0 {
		return
	}
	m := *s.HeightCm / 100
	bmi := *s.WeightKg / (m * m)
	s.BMI = &bmi
}

// OnboardingState is the derived profile-completion state. It is never
// stored; it is projected from the user row and the latest snapshot.
type OnboardingState int

const (
	StateNeedsName OnboardingState = iota
	StateNeedsActivity
	StateNeedsMeasurements
	StateNeedsGoal
	StateReady
)

func (s OnboardingState) String() string {
	switch s {
	case StateNeedsName:
		return "needs_name"
	case StateNeedsActivity:
		return "needs_activity"
	case StateNeedsMeasurements:
		return "needs_measurements"
	case StateNeedsGoal:
		return "needs_goal"
	default:
		return "ready"
	}
}

// ProjectState derives the onboarding state from the user and their latest
// snapshot. latest may be nil when the user has no snapshots yet.
func ProjectState(user User, latest *ProfileSnapshot) OnboardingState {
	if user.Name == "" {
		return StateNeedsName
	}
	if latest == nil || latest.Activity == nil {
		return StateNeedsActivity
	}
	if latest.HeightCm == nil || latest.WeightKg == nil {
		return StateNeedsMeasurements
	}
	if latest.Goal == nil {
		return StateNeedsGoal
	}
	return StateReady
}

// RawMessage is one inbound or outbound chat message. Append-only.
type RawMessage struct {
	ID        string
	UserID    string
	Body      string
	Incoming  bool
	CreatedAt time.Time
}
