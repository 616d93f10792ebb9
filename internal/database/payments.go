package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, amount, payment_method, received_by, proof_ref, created_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Amount, &p.PaymentMethod, &p.ReceivedBy, &p.ProofRef, &p.CreatedAt)
	return p, err
}

type CreatePaymentParams struct {
	OrderID       uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	ReceivedBy    uuid.UUID
	ProofRef      pgtype.Text
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (order_id, amount, payment_method, received_by, proof_ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+paymentColumns,
		arg.OrderID, arg.Amount, arg.PaymentMethod, arg.ReceivedBy, arg.ProofRef,
	)
	return scanPayment(row)
}

func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE id = $1`,
		id,
	)
	return scanPayment(row)
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE order_id = $1
		ORDER BY created_at`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SumPaymentsByOrder totals all payments recorded against an order. The
// payment status is always re-derived from this sum, never adjusted in place.
func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	row := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE order_id = $1`,
		orderID,
	)
	var total pgtype.Numeric
	err := row.Scan(&total)
	return total, err
}

func (q *Queries) DeletePayment(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM payments
		WHERE id = $1`,
		id,
	)
	return err
}
