// Package workout implements the aggregation pipeline: pending-session
// discovery, batch extraction, metric computation and stale-session cleanup.
package workout

import "strings"

// ExerciseProfile holds the per-exercise constants behind the metric
// formulas. Weight bands select the intensity multiplier: a kg-normalized
// weight at or below Band1MaxKg scores with Level1, within (Band1MaxKg,
// Band2MaxKg] with Level2, above with Level3.
type ExerciseProfile struct {
	AvgRepSeconds    float64
	AvgBreakSeconds  float64
	CaloriesPerRepKg float64
	Band1MaxKg       float64
	Band2MaxKg       float64
	Level1           float64
	Level2           float64
	Level3           float64
	MuscleGroup      string
}

// Multiplier returns the intensity level multiplier for a kg weight.
func (p ExerciseProfile) Multiplier(weightKg float64) float64 {
	switch {
	case weightKg <= p.Band1MaxKg:
		return p.Level1
	case weightKg <= p.Band2MaxKg:
		return p.Level2
	default:
		return p.Level3
	}
}

// MetricsTable is the passed-in configuration of exercise constants. It is
// explicitly constructed so the pipeline stays testable without environment
// setup.
type MetricsTable struct {
	SetupSeconds float64
	profiles     map[string]ExerciseProfile
}

// NewMetricsTable builds a table from a profile map keyed by exercise name.
// Keys are matched case-insensitively.
func NewMetricsTable(setupSeconds float64, profiles map[string]ExerciseProfile) *MetricsTable {
	normalized := make(map[string]ExerciseProfile, len(profiles))
	for name, profile := range profiles {
		normalized[normalizeName(name)] = profile
	}
	return &MetricsTable{SetupSeconds: setupSeconds, profiles: normalized}
}

// Lookup finds the profile for an exercise name.
func (t *MetricsTable) Lookup(name string) (ExerciseProfile, bool) {
	profile, ok := t.profiles[normalizeName(name)]
	return profile, ok
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// DefaultMetricsTable returns the built-in exercise constants covering the
// common gym movements the extraction service normalizes to.
func DefaultMetricsTable() *MetricsTable {
	return NewMetricsTable(60, map[string]ExerciseProfile{
		"bench press":    {AvgRepSeconds: 3.0, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.012, Band1MaxKg: 40, Band2MaxKg: 80, Level1: 1.0, Level2: 1.3, Level3: 1.6, MuscleGroup: "chest"},
		"incline press":  {AvgRepSeconds: 3.0, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.012, Band1MaxKg: 35, Band2MaxKg: 70, Level1: 1.0, Level2: 1.3, Level3: 1.6, MuscleGroup: "chest"},
		"squat":          {AvgRepSeconds: 4.0, AvgBreakSeconds: 120, CaloriesPerRepKg: 0.018, Band1MaxKg: 50, Band2MaxKg: 100, Level1: 1.1, Level2: 1.4, Level3: 1.8, MuscleGroup: "legs"},
		"deadlift":       {AvgRepSeconds: 4.5, AvgBreakSeconds: 150, CaloriesPerRepKg: 0.020, Band1MaxKg: 60, Band2MaxKg: 120, Level1: 1.1, Level2: 1.5, Level3: 1.9, MuscleGroup: "back"},
		"shoulder press": {AvgRepSeconds: 3.0, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.011, Band1MaxKg: 25, Band2MaxKg: 50, Level1: 1.0, Level2: 1.3, Level3: 1.6, MuscleGroup: "shoulders"},
		"lat pulldown":   {AvgRepSeconds: 3.0, AvgBreakSeconds: 75, CaloriesPerRepKg: 0.010, Band1MaxKg: 35, Band2MaxKg: 65, Level1: 1.0, Level2: 1.2, Level3: 1.5, MuscleGroup: "back"},
		"barbell row":    {AvgRepSeconds: 3.0, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.013, Band1MaxKg: 40, Band2MaxKg: 80, Level1: 1.0, Level2: 1.3, Level3: 1.6, MuscleGroup: "back"},
		"bicep curls":    {AvgRepSeconds: 2.5, AvgBreakSeconds: 60, CaloriesPerRepKg: 0.008, Band1MaxKg: 10, Band2MaxKg: 20, Level1: 1.0, Level2: 1.2, Level3: 1.4, MuscleGroup: "arms"},
		"dumbbell curls": {AvgRepSeconds: 2.5, AvgBreakSeconds: 60, CaloriesPerRepKg: 0.008, Band1MaxKg: 10, Band2MaxKg: 20, Level1: 1.0, Level2: 1.2, Level3: 1.4, MuscleGroup: "arms"},
		"tricep pushdown": {AvgRepSeconds: 2.5, AvgBreakSeconds: 60, CaloriesPerRepKg: 0.008, Band1MaxKg: 15, Band2MaxKg: 30, Level1: 1.0, Level2: 1.2, Level3: 1.4, MuscleGroup: "arms"},
		"leg press":      {AvgRepSeconds: 3.5, AvgBreakSeconds: 100, CaloriesPerRepKg: 0.015, Band1MaxKg: 80, Band2MaxKg: 160, Level1: 1.0, Level2: 1.3, Level3: 1.7, MuscleGroup: "legs"},
		"leg curl":       {AvgRepSeconds: 3.0, AvgBreakSeconds: 75, CaloriesPerRepKg: 0.010, Band1MaxKg: 25, Band2MaxKg: 50, Level1: 1.0, Level2: 1.2, Level3: 1.5, MuscleGroup: "legs"},
		"lunges":         {AvgRepSeconds: 3.5, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.014, Band1MaxKg: 20, Band2MaxKg: 40, Level1: 1.0, Level2: 1.3, Level3: 1.6, MuscleGroup: "legs"},
		"pull-ups":       {AvgRepSeconds: 3.5, AvgBreakSeconds: 90, CaloriesPerRepKg: 0.016, Band1MaxKg: 0, Band2MaxKg: 10, Level1: 1.2, Level2: 1.5, Level3: 1.8, MuscleGroup: "back"},
		"push-ups":       {AvgRepSeconds: 2.0, AvgBreakSeconds: 45, CaloriesPerRepKg: 0.006, Band1MaxKg: 0, Band2MaxKg: 10, Level1: 1.0, Level2: 1.2, Level3: 1.4, MuscleGroup: "chest"},
		"plank":          {AvgRepSeconds: 30, AvgBreakSeconds: 60, CaloriesPerRepKg: 0.005, Band1MaxKg: 0, Band2MaxKg: 10, Level1: 1.0, Level2: 1.2, Level3: 1.4, MuscleGroup: "core"},
	})
}
