package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// ErrNoExercises is returned when a replace is attempted with an empty
// exercise set; the session must stay pending in that case.
var ErrNoExercises = errors.New("no exercises to store")

// SessionRepository persists workout sessions, their message membership and
// derived exercises.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

const sessionColumns = `session_id, user_id, activity_type, duration_min, calories_burnt, intensity_score, created_at`

func scanSession(row pgx.Row) (domain.WorkoutSession, error) {
	var s domain.WorkoutSession
	err := row.Scan(&s.ID, &s.UserID, &s.ActivityType, &s.DurationMin, &s.CaloriesBurnt, &s.IntensityScore, &s.CreatedAt)
	return s, err
}

// ActiveSession returns the user's most recently created session inside the
// affinity window, or nil when none exists.
func (r *SessionRepository) ActiveSession(ctx context.Context, userID string, window time.Duration) (*domain.WorkoutSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM workout_sessions
        WHERE user_id = $1 AND created_at >= $2
        ORDER BY created_at DESC LIMIT 1`
	session, err := scanSession(r.pool.QueryRow(ctx, query, userID, time.Now().Add(-window)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CreateSession opens a new session bucket for the user.
func (r *SessionRepository) CreateSession(ctx context.Context, userID string) (domain.WorkoutSession, error) {
	query := `INSERT INTO workout_sessions (session_id, user_id) VALUES ($1, $2)
        RETURNING ` + sessionColumns
	return scanSession(r.pool.QueryRow(ctx, query, uuid.NewString(), userID))
}

// AttachMessage adds a raw message to the session. Attaching the same
// message twice is a no-op.
func (r *SessionRepository) AttachMessage(ctx context.Context, sessionID, messageID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_messages (session_id, message_id) VALUES ($1, $2)
         ON CONFLICT DO NOTHING`, sessionID, messageID)
	return err
}

// PendingSessions finds sessions created inside the recency window whose raw
// count exceeds their processed count. The comparison happens in SQL so
// sessions with nothing pending never load message bodies.
func (r *SessionRepository) PendingSessions(ctx context.Context, window time.Duration) ([]domain.PendingSession, error) {
	query := `SELECT s.session_id, s.user_id,
            count(*) AS raw_count,
            count(*) FILTER (WHERE m.processed) AS processed_count
        FROM workout_sessions s
        JOIN session_messages m ON m.session_id = s.session_id
        WHERE s.created_at >= $1
        GROUP BY s.session_id, s.user_id
        HAVING count(*) > count(*) FILTER (WHERE m.processed)
        ORDER BY s.created_at`

	rows, err := r.pool.Query(ctx, query, time.Now().Add(-window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []domain.PendingSession
	for rows.Next() {
		var p domain.PendingSession
		if err := rows.Scan(&p.SessionID, &p.UserID, &p.RawCount, &p.ProcessedCount); err != nil {
			return nil, err
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// SessionMessages returns all raw messages attached to a session in
// chronological order.
func (r *SessionRepository) SessionMessages(ctx context.Context, sessionID string) ([]domain.RawMessage, error) {
	query := `SELECT rm.message_id, rm.user_id, rm.body, rm.incoming, rm.created_at
        FROM session_messages sm
        JOIN raw_messages rm ON rm.message_id = sm.message_id
        WHERE sm.session_id = $1
        ORDER BY rm.created_at, rm.message_id`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.RawMessage
	for rows.Next() {
		var m domain.RawMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Body, &m.Incoming, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ReplaceExercisesAndMark atomically swaps the session's exercise set for
// the supplied one, marks messageIDs processed and writes the derived
// metrics. Only the messages whose content fed this extraction may be
// marked: a message attached after the caller read the session stays
// unprocessed so the next scan picks the session up again. Everything
// happens in one transaction: on any failure no partial state is committed
// and the session stays pending.
func (r *SessionRepository) ReplaceExercisesAndMark(ctx context.Context, session domain.WorkoutSession, messageIDs []string, exercises []domain.Exercise, metrics domain.SessionMetrics) error {
	if len(exercises) == 0 {
		return ErrNoExercises
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM exercises WHERE session_id = $1`, session.ID); err != nil {
		return err
	}

	inserted, err := tx.CopyFrom(ctx,
		pgx.Identifier{"exercises"},
		[]string{"exercise_id", "session_id", "name", "weight_value", "weight_unit", "sets", "reps", "muscle_group"},
		pgx.CopyFromSlice(len(exercises), func(i int) ([]any, error) {
			e := exercises[i]
			return []any{uuid.NewString(), session.ID, e.Name, e.WeightValue, e.WeightUnit, e.Sets, e.Reps, e.MuscleGroup}, nil
		}),
	)
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrNoExercises
	}

	if _, err := tx.Exec(ctx,
		`UPDATE session_messages SET processed = TRUE
         WHERE session_id = $1 AND message_id = ANY($2)`, session.ID, messageIDs); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE workout_sessions
         SET duration_min = $2, calories_burnt = $3, intensity_score = $4
         WHERE session_id = $1`,
		session.ID, metrics.DurationMin, metrics.CaloriesBurnt, metrics.IntensityScore); err != nil {
		return err
	}

	payload := map[string]any{
		"session_id":      session.ID,
		"user_id":         session.UserID,
		"exercise_count":  inserted,
		"duration_min":    metrics.DurationMin,
		"calories_burnt":  metrics.CaloriesBurnt,
		"intensity_score": metrics.IntensityScore,
	}
	if err := InsertOutbox(ctx, tx, OutboxEvent{
		AggregateType: "workout_session",
		AggregateID:   session.ID,
		EventType:     "session.processed",
		Topic:         "fitness_session_events",
		PartitionKey:  session.UserID,
	}, payload); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteStaleSessions purges incomplete sessions older than the cutoff in
// batches, returning the total number deleted.
func (r *SessionRepository) DeleteStaleSessions(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	const query = `DELETE FROM workout_sessions
        WHERE session_id IN (
            SELECT session_id FROM workout_sessions
            WHERE created_at < $1 AND duration_min IS NULL
            LIMIT $2
        )`

	var total int64
	for {
		tag, err := r.pool.Exec(ctx, query, cutoff, batchSize)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
	}
}
