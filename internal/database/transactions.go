package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const financialTransactionColumns = `id, company_id, type, amount, payment_method,
	description, source_table, source_id, created_at`

func scanFinancialTransaction(row interface{ Scan(dest ...any) error }) (FinancialTransaction, error) {
	var t FinancialTransaction
	err := row.Scan(
		&t.ID, &t.CompanyID, &t.Type, &t.Amount, &t.PaymentMethod,
		&t.Description, &t.SourceTable, &t.SourceID, &t.CreatedAt,
	)
	return t, err
}

type CreateFinancialTransactionParams struct {
	CompanyID     uuid.UUID
	Type          string
	Amount        pgtype.Numeric
	PaymentMethod string
	Description   string
	SourceTable   pgtype.Text
	SourceID      pgtype.UUID
}

func (q *Queries) CreateFinancialTransaction(ctx context.Context, arg CreateFinancialTransactionParams) (FinancialTransaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO financial_transactions (company_id, type, amount, payment_method, description, source_table, source_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+financialTransactionColumns,
		arg.CompanyID, arg.Type, arg.Amount, arg.PaymentMethod,
		arg.Description, arg.SourceTable, arg.SourceID,
	)
	return scanFinancialTransaction(row)
}

type GetFinancialTransactionParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetFinancialTransaction(ctx context.Context, arg GetFinancialTransactionParams) (FinancialTransaction, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+financialTransactionColumns+`
		FROM financial_transactions
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return scanFinancialTransaction(row)
}

type ListFinancialTransactionsParams struct {
	CompanyID uuid.UUID
	Type      pgtype.Text
	From      pgtype.Timestamptz
	To        pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListFinancialTransactions(ctx context.Context, arg ListFinancialTransactionsParams) ([]FinancialTransaction, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+financialTransactionColumns+`
		FROM financial_transactions
		WHERE company_id = $1
		  AND ($2::text IS NULL OR type = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at < $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6`,
		arg.CompanyID, arg.Type, arg.From, arg.To, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []FinancialTransaction
	for rows.Next() {
		t, err := scanFinancialTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// DeleteFinancialTransaction removes a manual entry. Sourced rows are owned
// by their settlement and are cleared through DeleteTransactionsBySource.
func (q *Queries) DeleteFinancialTransaction(ctx context.Context, arg GetFinancialTransactionParams) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM financial_transactions
		WHERE id = $1 AND company_id = $2 AND source_table IS NULL`,
		arg.ID, arg.CompanyID,
	)
	return err
}

type DeleteTransactionsBySourceParams struct {
	SourceTable string
	SourceID    uuid.UUID
}

func (q *Queries) DeleteTransactionsBySource(ctx context.Context, arg DeleteTransactionsBySourceParams) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM financial_transactions
		WHERE source_table = $1 AND source_id = $2`,
		arg.SourceTable, arg.SourceID,
	)
	return err
}
