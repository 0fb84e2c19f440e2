package dashboard

import (
	"context"
	"log"

	"github.com/dataX-ai/fitness-pal/internal/domain"
	"github.com/dataX-ai/fitness-pal/internal/persistence/postgres"
	"github.com/dataX-ai/fitness-pal/internal/units"
)

// RollupStore is the aggregate surface the rollup job reads and writes.
type RollupStore interface {
	UserWorkoutStats(ctx context.Context) ([]postgres.WorkoutStats, error)
	UserWeightHistory(ctx context.Context) ([]postgres.WeightHistory, error)
	UserScoreInputs(ctx context.Context) ([]postgres.ScoreInputs, error)
	UpsertDetails(ctx context.Context, details []domain.DashboardDetails) error
}

// Roller recomputes every user's DashboardDetails row from scratch. The
// rollup is a full recompute-and-upsert, so reruns are harmless.
type Roller struct {
	store  RollupStore
	logger *log.Logger
}

// NewRoller constructs a Roller.
func NewRoller(store RollupStore) *Roller {
	return &Roller{
		store:  store,
		logger: log.New(log.Writer(), "[dashboard] ", log.LstdFlags|log.Lshortfile),
	}
}

// Run performs one rollup pass and returns the number of users written.
// A user appears in the output when they have workout stats or weight
// history; missing halves contribute zero values.
func (r *Roller) Run(ctx context.Context) (int, error) {
	stats, err := r.store.UserWorkoutStats(ctx)
	if err != nil {
		return 0, err
	}
	history, err := r.store.UserWeightHistory(ctx)
	if err != nil {
		return 0, err
	}
	scores, err := r.store.UserScoreInputs(ctx)
	if err != nil {
		return 0, err
	}

	statsByUser := make(map[string]postgres.WorkoutStats, len(stats))
	for _, s := range stats {
		statsByUser[s.UserID] = s
	}
	scoresByUser := make(map[string]postgres.ScoreInputs, len(scores))
	for _, s := range scores {
		scoresByUser[s.UserID] = s
	}

	userIDs := make(map[string]struct{}, len(stats)+len(history))
	for _, s := range stats {
		userIDs[s.UserID] = struct{}{}
	}
	historyByUser := make(map[string]postgres.WeightHistory, len(history))
	for _, h := range history {
		historyByUser[h.UserID] = h
		userIDs[h.UserID] = struct{}{}
	}

	details := make([]domain.DashboardDetails, 0, len(userIDs))
	for userID := range userIDs {
		d := domain.DashboardDetails{UserID: userID}

		if s, ok := statsByUser[userID]; ok {
			d.AllTimeDuration = s.AllTimeDuration
			d.LastWeekDuration = s.LastWeekDuration
			d.AvgWeekDuration = s.AllTimeDuration / float64(s.DistinctWorkoutDays/7+1)
		}

		if h, ok := historyByUser[userID]; ok {
			d.InitialWeight = h.FirstWeight
			d.CurrentWeight = h.LastWeight
			if h.HeightCm != nil {
				goal := ""
				if h.Goal != nil {
					goal = *h.Goal
				}
				d.GoalWeight = units.GoalWeight(*h.HeightCm, goal)
			}
		}

		if in, ok := scoresByUser[userID]; ok {
			d.FitnessScore, d.HasFitnessScore = fitnessScore(
				in.TotalSessions, in.Last30Sessions, in.UniqueExercises, in.TotalSets, in.TotalExercises)
		}

		details = append(details, d)
	}

	if err := r.store.UpsertDetails(ctx, details); err != nil {
		return 0, err
	}
	r.logger.Printf("rollup pass wrote %d users", len(details))
	return len(details), nil
}
