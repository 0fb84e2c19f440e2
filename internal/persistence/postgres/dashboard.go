package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// ErrDashboardNotFound is returned when a user has no rollup row yet.
var ErrDashboardNotFound = errors.New("dashboard details not found")

// DashboardRepository reads aggregate inputs and stores per-user rollups.
type DashboardRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(pool *pgxpool.Pool) *DashboardRepository {
	return &DashboardRepository{pool: pool}
}

// WorkoutStats is the per-user duration aggregate over completed sessions.
type WorkoutStats struct {
	UserID              string
	AllTimeDuration     float64
	LastWeekDuration    float64
	DistinctWorkoutDays int
}

// UserWorkoutStats aggregates completed-session durations per user in one
// set-based query.
func (r *DashboardRepository) UserWorkoutStats(ctx context.Context) ([]WorkoutStats, error) {
	query := `SELECT user_id,
            COALESCE(sum(duration_min), 0),
            COALESCE(sum(duration_min) FILTER (WHERE created_at >= $1), 0),
            count(DISTINCT created_at::date)
        FROM workout_sessions
        WHERE duration_min IS NOT NULL
        GROUP BY user_id`

	rows, err := r.pool.Query(ctx, query, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []WorkoutStats
	for rows.Next() {
		var s WorkoutStats
		if err := rows.Scan(&s.UserID, &s.AllTimeDuration, &s.LastWeekDuration, &s.DistinctWorkoutDays); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// WeightHistory is the first/last recorded weight plus the inputs needed to
// derive a goal weight.
type WeightHistory struct {
	UserID      string
	FirstWeight float64
	LastWeight  float64
	HeightCm    *float64
	Goal        *string
}

// UserWeightHistory returns one row per user who has at least one snapshot
// with a recorded weight.
func (r *DashboardRepository) UserWeightHistory(ctx context.Context) ([]WeightHistory, error) {
	query := `WITH weights AS (
            SELECT user_id, weight_kg, height_cm, goal,
                row_number() OVER (PARTITION BY user_id ORDER BY created_at, snapshot_id) AS rn_first,
                row_number() OVER (PARTITION BY user_id ORDER BY created_at DESC, snapshot_id DESC) AS rn_last
            FROM profile_snapshots
            WHERE weight_kg IS NOT NULL
        )
        SELECT f.user_id, f.weight_kg, l.weight_kg, l.height_cm, l.goal
        FROM weights f
        JOIN weights l ON l.user_id = f.user_id AND l.rn_last = 1
        WHERE f.rn_first = 1`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []WeightHistory
	for rows.Next() {
		var h WeightHistory
		if err := rows.Scan(&h.UserID, &h.FirstWeight, &h.LastWeight, &h.HeightCm, &h.Goal); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// ScoreInputs carries the per-user aggregates behind the fitness score.
type ScoreInputs struct {
	UserID          string
	TotalSessions   int
	Last30Sessions  int
	UniqueExercises int
	TotalSets       int
	TotalExercises  int
}

// UserScoreInputs aggregates session and exercise history per user.
func (r *DashboardRepository) UserScoreInputs(ctx context.Context) ([]ScoreInputs, error) {
	query := `SELECT s.user_id,
            count(DISTINCT s.session_id),
            count(DISTINCT s.session_id) FILTER (WHERE s.created_at >= $1),
            count(DISTINCT lower(e.name)),
            COALESCE(sum(e.sets), 0),
            count(e.exercise_id)
        FROM workout_sessions s
        LEFT JOIN exercises e ON e.session_id = s.session_id
        GROUP BY s.user_id`

	rows, err := r.pool.Query(ctx, query, time.Now().AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []ScoreInputs
	for rows.Next() {
		var in ScoreInputs
		if err := rows.Scan(&in.UserID, &in.TotalSessions, &in.Last30Sessions, &in.UniqueExercises, &in.TotalSets, &in.TotalExercises); err != nil {
			return nil, err
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

// UpsertDetails writes the rollups in one batched round trip: update if a
// row exists, insert otherwise.
func (r *DashboardRepository) UpsertDetails(ctx context.Context, details []domain.DashboardDetails) error {
	if len(details) == 0 {
		return nil
	}

	const stmt = `INSERT INTO dashboard_details
            (user_id, fitness_score, has_fitness_score, initial_weight, current_weight, goal_weight,
             all_time_duration, last_week_duration, avg_week_duration, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
        ON CONFLICT (user_id) DO UPDATE SET
            fitness_score = EXCLUDED.fitness_score,
            has_fitness_score = EXCLUDED.has_fitness_score,
            initial_weight = EXCLUDED.initial_weight,
            current_weight = EXCLUDED.current_weight,
            goal_weight = EXCLUDED.goal_weight,
            all_time_duration = EXCLUDED.all_time_duration,
            last_week_duration = EXCLUDED.last_week_duration,
            avg_week_duration = EXCLUDED.avg_week_duration,
            updated_at = now()`

	batch := &pgx.Batch{}
	for _, d := range details {
		batch.Queue(stmt,
			d.UserID, d.FitnessScore, d.HasFitnessScore, d.InitialWeight, d.CurrentWeight, d.GoalWeight,
			d.AllTimeDuration, d.LastWeekDuration, d.AvgWeekDuration)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// GetDetails fetches one user's rollup row.
func (r *DashboardRepository) GetDetails(ctx context.Context, userID string) (domain.DashboardDetails, error) {
	query := `SELECT user_id, fitness_score, has_fitness_score, initial_weight, current_weight, goal_weight,
            all_time_duration, last_week_duration, avg_week_duration, updated_at
        FROM dashboard_details WHERE user_id = $1`

	var d domain.DashboardDetails
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&d.UserID, &d.FitnessScore, &d.HasFitnessScore, &d.InitialWeight, &d.CurrentWeight, &d.GoalWeight,
		&d.AllTimeDuration, &d.LastWeekDuration, &d.AvgWeekDuration, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DashboardDetails{}, ErrDashboardNotFound
	}
	return d, err
}

// WeekStreak computes the completed-workout days of the calendar week
// containing now, Monday first.
func (r *DashboardRepository) WeekStreak(ctx context.Context, userID string, now time.Time) (domain.WeekStreak, error) {
	weekday := (int(now.Weekday()) + 6) % 7 // Monday = 0
	monday := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -weekday)

	query := `SELECT created_at::date, count(*)
        FROM workout_sessions
        WHERE user_id = $1 AND duration_min IS NOT NULL
          AND created_at >= $2 AND created_at < $3
        GROUP BY created_at::date`

	rows, err := r.pool.Query(ctx, query, userID, monday, monday.AddDate(0, 0, 7))
	if err != nil {
		return domain.WeekStreak{}, err
	}
	defer rows.Close()

	streak := domain.WeekStreak{WeekStart: monday}
	for rows.Next() {
		var day time.Time
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return domain.WeekStreak{}, err
		}
		// created_at::date scans as midnight UTC; monday carries the caller's
		// zone. Compare calendar dates, not elapsed hours.
		if idx, ok := weekDayIndex(monday, day); ok {
			streak.Days[idx] = true
			streak.StreakDays++
		}
		streak.TotalSessions += count
	}
	return streak, rows.Err()
}

// weekDayIndex maps day onto the Monday-first week starting at monday by
// calendar date, ignoring the time zones either value carries.
func weekDayIndex(monday, day time.Time) (int, bool) {
	date := day.Format("2006-01-02")
	for i := 0; i < 7; i++ {
		if monday.AddDate(0, 0, i).Format("2006-01-02") == date {
			return i, true
		}
	}
	return 0, false
}
