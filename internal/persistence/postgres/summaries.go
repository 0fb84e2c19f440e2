package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// SummaryRepository reads completed sessions for the recap jobs.
type SummaryRepository struct {
	pool *pgxpool.Pool
}

// NewSummaryRepository constructs a SummaryRepository.
func NewSummaryRepository(pool *pgxpool.Pool) *SummaryRepository {
	return &SummaryRepository{pool: pool}
}

// SessionDigests returns completed sessions created in [from, to) with their
// exercises attached, ordered by user then session time. The join is folded
// in one pass, so the ordering is load-bearing.
func (r *SummaryRepository) SessionDigests(ctx context.Context, from, to time.Time) ([]domain.SessionDigest, error) {
	query := `SELECT s.session_id, s.user_id, u.phone_number, s.activity_type, s.duration_min, s.created_at,
            e.name, e.weight_value, e.weight_unit, e.sets, e.reps
        FROM workout_sessions s
        JOIN users u ON u.user_id = s.user_id
        LEFT JOIN exercises e ON e.session_id = s.session_id
        WHERE s.duration_min IS NOT NULL AND s.created_at >= $1 AND s.created_at < $2
        ORDER BY s.user_id, s.created_at, s.session_id, e.exercise_id`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var digests []domain.SessionDigest
	for rows.Next() {
		var d domain.SessionDigest
		var name, unit *string
		var weight *float64
		var sets, reps *int
		if err := rows.Scan(&d.SessionID, &d.UserID, &d.PhoneNumber, &d.ActivityType, &d.DurationMin, &d.CreatedAt,
			&name, &weight, &unit, &sets, &reps); err != nil {
			return nil, err
		}

		if len(digests) == 0 || digests[len(digests)-1].SessionID != d.SessionID {
			digests = append(digests, d)
		}
		if name != nil {
			last := &digests[len(digests)-1]
			last.Exercises = append(last.Exercises, domain.Exercise{
				SessionID:   d.SessionID,
				Name:        *name,
				WeightValue: *weight,
				WeightUnit:  *unit,
				Sets:        *sets,
				Reps:        *reps,
			})
		}
	}
	return digests, rows.Err()
}
