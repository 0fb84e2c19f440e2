// Package postgres provides pgx-backed persistence for the fitness tracker.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// Repository provides Postgres-backed persistence for users, messages and
// profile snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool for sibling repositories.
func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

const userColumns = `user_id, phone_number, name, paid, created_at, last_interaction`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.Name, &u.Paid, &u.CreatedAt, &u.LastInteraction)
	return u, err
}

// GetOrCreateUser fetches the user for a messaging address, creating the row
// on first contact. The second return value reports whether a new user was
// created.
func (r *Repository) GetOrCreateUser(ctx context.Context, phoneNumber string) (domain.User, bool, error) {
	insert := `INSERT INTO users (user_id, phone_number) VALUES ($1, $2)
        ON CONFLICT (phone_number) DO NOTHING
        RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, insert, uuid.NewString(), phoneNumber))
	if err == nil {
		return user, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, false, err
	}

	query := `UPDATE users SET last_interaction = now() WHERE phone_number = $1 RETURNING ` + userColumns
	user, err = scanUser(r.pool.QueryRow(ctx, query, phoneNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, false, domain.ErrUserNotFound
		}
		return domain.User{}, false, err
	}
	return user, false, nil
}

// GetUserByPhone fetches a user by messaging address.
func (r *Repository) GetUserByPhone(ctx context.Context, phoneNumber string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, phoneNumber))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// GetUserByID fetches a user by ID.
func (r *Repository) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`
	user, err := scanUser(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, err
}

// SetUserName stores the display name collected during onboarding.
func (r *Repository) SetUserName(ctx context.Context, userID, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET name = $2 WHERE user_id = $1`, userID, name)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// CreateRawMessage appends one chat message. Messages are never mutated.
func (r *Repository) CreateRawMessage(ctx context.Context, userID, body string, incoming bool) (domain.RawMessage, error) {
	msg := domain.RawMessage{
		ID:       uuid.NewString(),
		UserID:   userID,
		Body:     body,
		Incoming: incoming,
	}
	query := `INSERT INTO raw_messages (message_id, user_id, body, incoming)
        VALUES ($1, $2, $3, $4) RETURNING created_at`
	if err := r.pool.QueryRow(ctx, query, msg.ID, msg.UserID, msg.Body, msg.Incoming).Scan(&msg.CreatedAt); err != nil {
		return domain.RawMessage{}, err
	}
	return msg, nil
}

// CountIncomingSince counts a user's inbound messages created at or after
// the supplied instant. Used by daily quota enforcement.
func (r *Repository) CountIncomingSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	query := `SELECT count(*) FROM raw_messages WHERE user_id = $1 AND incoming AND created_at >= $2`
	err := r.pool.QueryRow(ctx, query, userID, since).Scan(&count)
	return count, err
}

const snapshotColumns = `snapshot_id, user_id, height_cm, weight_kg, activity, body_composition, goal, bmi, created_at`

func scanSnapshot(row pgx.Row) (domain.ProfileSnapshot, error) {
	var s domain.ProfileSnapshot
	var activity, goal *string
	err := row.Scan(&s.ID, &s.UserID, &s.HeightCm, &s.WeightKg, &activity, &s.BodyComposition, &goal, &s.BMI, &s.CreatedAt)
	if activity != nil {
		a := domain.ActivityLevel(*activity)
		s.Activity = &a
	}
	if goal != nil {
		g := domain.Goal(*goal)
		s.Goal = &g
	}
	return s, err
}

// LatestSnapshot returns the user's most recent profile snapshot, or nil
// when the user has none yet.
func (r *Repository) LatestSnapshot(ctx context.Context, userID string) (*domain.ProfileSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM profile_snapshots
        WHERE user_id = $1 ORDER BY created_at DESC, snapshot_id DESC LIMIT 1`
	snap, err := scanSnapshot(r.pool.QueryRow(ctx, query, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateSnapshot appends a profile snapshot, carrying unset fields forward
// from the previous one. The read-merge-insert runs in one transaction
// serialized per user with a transactional advisory lock, so concurrent
// messages from the same user cannot lose carry-forward data. When the
// snapshot completes the profile for the first time, a user.onboarded event
// is recorded in the same transaction.
func (r *Repository) CreateSnapshot(ctx context.Context, snap domain.ProfileSnapshot) (domain.ProfileSnapshot, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.ProfileSnapshot{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, snap.UserID); err != nil {
		return domain.ProfileSnapshot{}, err
	}

	prevQuery := `SELECT ` + snapshotColumns + ` FROM profile_snapshots
        WHERE user_id = $1 ORDER BY created_at DESC, snapshot_id DESC LIMIT 1`
	var prev *domain.ProfileSnapshot
	prevSnap, err := scanSnapshot(tx.QueryRow(ctx, prevQuery, snap.UserID))
	if err == nil {
		prev = &prevSnap
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ProfileSnapshot{}, err
	}

	snap.ID = uuid.NewString()
	snap.Merge(prev)
	snap.ComputeBMI()

	var activity, goal *string
	if snap.Activity != nil {
		a := string(*snap.Activity)
		activity = &a
	}
	if snap.Goal != nil {
		g := string(*snap.Goal)
		goal = &g
	}

	insert := `INSERT INTO profile_snapshots (snapshot_id, user_id, height_cm, weight_kg, activity, body_composition, goal, bmi)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at`
	if err := tx.QueryRow(ctx, insert,
		snap.ID, snap.UserID, snap.HeightCm, snap.WeightKg, activity, snap.BodyComposition, goal, snap.BMI,
	).Scan(&snap.CreatedAt); err != nil {
		return domain.ProfileSnapshot{}, err
	}

	if completesProfile(snap, prev) {
		var name string
		if err := tx.QueryRow(ctx, `SELECT name FROM users WHERE user_id = $1`, snap.UserID).Scan(&name); err != nil {
			return domain.ProfileSnapshot{}, err
		}
		if name != "" {
			payload := map[string]any{
				"user_id":     snap.UserID,
				"snapshot_id": snap.ID,
				"occurred_at": time.Now().UTC(),
			}
			if err := InsertOutbox(ctx, tx, OutboxEvent{
				AggregateType: "user",
				AggregateID:   snap.UserID,
				EventType:     "user.onboarded",
				Topic:         "fitness_user_events",
				PartitionKey:  snap.UserID,
			}, payload); err != nil {
				return domain.ProfileSnapshot{}, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.ProfileSnapshot{}, err
	}
	return snap, nil
}

func completesProfile(cur domain.ProfileSnapshot, prev *domain.ProfileSnapshot) bool {
	complete := func(s *domain.ProfileSnapshot) bool {
		return s != nil && s.Activity != nil && s.HeightCm != nil && s.WeightKg != nil && s.Goal != nil
	}
	return complete(&cur) && !complete(prev)
}

// OutboxEvent describes the routing metadata for one outbox row.
type OutboxEvent struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Topic         string
	PartitionKey  string
}

// InsertOutbox records a domain event in the same transaction as the state
// change it describes.
func InsertOutbox(ctx context.Context, tx pgx.Tx, event OutboxEvent, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, partition_key, payload)
        VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = tx.Exec(ctx, stmt,
		event.AggregateType, event.AggregateID, event.EventType, event.Topic, event.PartitionKey, body)
	return err
}
