package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

// PaymentRepository records subscription payment events. The pipeline only
// consumes the resulting paid flag on the user row.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// RecordPayment stores the payment row and updates the user's paid flag in
// one transaction. A failure rolls back that payment only.
func (r *PaymentRepository) RecordPayment(ctx context.Context, payment domain.PaymentRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const insert = `INSERT INTO payment_history
            (payment_id, user_id, subscription_id, product_id, amount, currency, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insert,
		uuid.NewString(), payment.UserID, payment.SubscriptionID, payment.ProductID,
		payment.Amount, payment.Currency, string(payment.Status)); err != nil {
		return err
	}

	paid := payment.Status == domain.PaymentActive
	if _, err := tx.Exec(ctx, `UPDATE users SET paid = $2 WHERE user_id = $1`, payment.UserID, paid); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
