package workout

import (
	"errors"
	"log"
	"math"
	"strings"

	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/nlp"
	"github.com/dataX-ai/fitness-pal/internal/units"
)

// ErrNoUsableExercises is returned when every exercise in an extraction
// batch had to be skipped. The session stays pending for the next pass.
var ErrNoUsableExercises = errors.New("no usable exercises in extraction output")

// Calculator maps extraction output to exercise rows and session totals
// using the constants in a MetricsTable.
type Calculator struct {
	table  *MetricsTable
	logger *log.Logger
}

// NewCalculator constructs a Calculator over the given table.
func NewCalculator(table *MetricsTable) *Calculator {
	return &Calculator{
		table:  table,
		logger: log.New(log.Writer(), "[metrics] ", log.LstdFlags|log.Lshortfile),
	}
}

// Compute scores each extracted exercise independently and accumulates
// session totals. An exercise with an unknown name, a malformed numeric
// field or an unconvertible weight is logged and skipped; the rest of the
// batch still counts. Returns ErrNoUsableExercises when nothing survives.
func (c *Calculator) Compute(sessionID string, parsed []nlp.ParsedExercise) ([]domain.Exercise, domain.SessionMetrics, error) {
	var (
		exercises []domain.Exercise
		totals    domain.SessionMetrics
	)

	for _, p := range parsed {
		profile, ok := c.table.Lookup(p.Name)
		if !ok {
			c.logger.Printf("session %s: unknown exercise %q, skipping", sessionID, p.Name)
			continue
		}

		reps, err := p.Reps.Int()
		if err != nil || reps <= 0 || p.Sets <= 0 {
			c.logger.Printf("session %s: unusable sets/reps for %q (sets=%d reps=%q), skipping",
				sessionID, p.Name, p.Sets, p.Reps)
			continue
		}

		weightKg, rawWeight, err := exerciseWeightKg(p.Weight)
		if err != nil {
			c.logger.Printf("session %s: unconvertible weight for %q (%q %q), skipping",
				sessionID, p.Name, p.Weight.Value, p.Weight.Unit)
			continue
		}

		repsF, setsF := float64(reps), float64(p.Sets)
		durationMin := (profile.AvgRepSeconds*repsF + profile.AvgBreakSeconds*(setsF-1) + c.table.SetupSeconds) / 60
		calories := profile.CaloriesPerRepKg * repsF * setsF * weightKg
		intensity := math.Pow(repsF*setsF, 1.5) * profile.Multiplier(weightKg)

		totals.DurationMin += durationMin
		totals.CaloriesBurnt += calories
		totals.IntensityScore += intensity

		muscle := profile.MuscleGroup
		exercises = append(exercises, domain.Exercise{
			SessionID:   sessionID,
			Name:        p.Name,
			WeightValue: rawWeight,
			WeightUnit:  p.Weight.Unit,
			Sets:        p.Sets,
			Reps:        reps,
			MuscleGroup: &muscle,
		})
	}

	if len(exercises) == 0 {
		return nil, domain.SessionMetrics{}, ErrNoUsableExercises
	}
	return exercises, totals, nil
}

// exerciseWeightKg normalizes an exercise weight to kg and also returns the
// raw numeric value for storage. Bodyweight entries, including the service's
// literal "not specified" in either field, carry no load and contribute zero
// to the weight-scaled terms.
func exerciseWeightKg(w nlp.ExerciseWeight) (kg, raw float64, err error) {
	switch strings.ToLower(strings.TrimSpace(w.Unit)) {
	case "", "not specified", "body weight", "bodyweight":
		return 0, 0, nil
	}
	if w.Value.IsZero() || strings.EqualFold(strings.TrimSpace(w.Value.String()), "not specified") {
		return 0, 0, nil
	}

	value, err := w.Value.Float()
	if err != nil {
		return 0, 0, units.ErrBadValue
	}
	switch strings.ToLower(strings.TrimSpace(w.Unit)) {
	case "kg", "kgs":
		return value, value, nil
	case "lb", "lbs", "pound", "pounds":
		return units.LbsToKg(value), value, nil
	case "g", "gram", "grams":
		return value / 1000, value, nil
	default:
		return 0, 0, units.ErrUnknownUnit
	}
}
