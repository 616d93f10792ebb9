package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const expenseReportColumns = `id, company_id, user_id, description, amount, payment_method,
	status, proof_ref, paid_at, created_at`

func scanExpenseReport(row interface{ Scan(dest ...any) error }) (ExpenseReport, error) {
	var e ExpenseReport
	err := row.Scan(
		&e.ID, &e.CompanyID, &e.UserID, &e.Description, &e.Amount, &e.PaymentMethod,
		&e.Status, &e.ProofRef, &e.PaidAt, &e.CreatedAt,
	)
	return e, err
}

type CreateExpenseReportParams struct {
	CompanyID     uuid.UUID
	UserID        uuid.UUID
	Description   string
	Amount        pgtype.Numeric
	PaymentMethod string
	ProofRef      pgtype.Text
}

func (q *Queries) CreateExpenseReport(ctx context.Context, arg CreateExpenseReportParams) (ExpenseReport, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO expense_reports (company_id, user_id, description, amount, payment_method, proof_ref)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+expenseReportColumns,
		arg.CompanyID, arg.UserID, arg.Description, arg.Amount, arg.PaymentMethod, arg.ProofRef,
	)
	return scanExpenseReport(row)
}

type GetExpenseReportParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetExpenseReport(ctx context.Context, arg GetExpenseReportParams) (ExpenseReport, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+expenseReportColumns+`
		FROM expense_reports
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return scanExpenseReport(row)
}

// GetExpenseReportForUpdate locks the row so two status transitions on the
// same report serialize.
func (q *Queries) GetExpenseReportForUpdate(ctx context.Context, arg GetExpenseReportParams) (ExpenseReport, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+expenseReportColumns+`
		FROM expense_reports
		WHERE id = $1 AND company_id = $2
		FOR NO KEY UPDATE`,
		arg.ID, arg.CompanyID,
	)
	return scanExpenseReport(row)
}

type ListExpenseReportsParams struct {
	CompanyID uuid.UUID
	Status    pgtype.Text
	UserID    pgtype.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListExpenseReports(ctx context.Context, arg ListExpenseReportsParams) ([]ExpenseReport, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+expenseReportColumns+`
		FROM expense_reports
		WHERE company_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.CompanyID, arg.Status, arg.UserID, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []ExpenseReport
	for rows.Next() {
		e, err := scanExpenseReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, e)
	}
	return reports, rows.Err()
}

type SetExpenseReportStatusParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Status    string
}

func (q *Queries) SetExpenseReportStatus(ctx context.Context, arg SetExpenseReportStatusParams) (ExpenseReport, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE expense_reports
		SET status = $3,
		    paid_at = CASE WHEN $3 = 'PAID' THEN now() ELSE paid_at END
		WHERE id = $1 AND company_id = $2
		RETURNING `+expenseReportColumns,
		arg.ID, arg.CompanyID, arg.Status,
	)
	return scanExpenseReport(row)
}
