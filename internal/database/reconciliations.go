package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const reconciliationColumns = `id, company_id, user_id, reconciliation_date, stock_type, items, created_at`

func scanReconciliation(row interface{ Scan(dest ...any) error }) (StockReconciliation, error) {
	var r StockReconciliation
	err := row.Scan(&r.ID, &r.CompanyID, &r.UserID, &r.ReconciliationDate, &r.StockType, &r.Items, &r.CreatedAt)
	return r, err
}

type CreateStockReconciliationParams struct {
	CompanyID          uuid.UUID
	UserID             uuid.UUID
	ReconciliationDate pgtype.Timestamptz
	StockType          string
	Items              []byte
}

func (q *Queries) CreateStockReconciliation(ctx context.Context, arg CreateStockReconciliationParams) (StockReconciliation, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO stock_reconciliations (company_id, user_id, reconciliation_date, stock_type, items)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+reconciliationColumns,
		arg.CompanyID, arg.UserID, arg.ReconciliationDate, arg.StockType, arg.Items,
	)
	return scanReconciliation(row)
}

type GetStockReconciliationParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetStockReconciliation(ctx context.Context, arg GetStockReconciliationParams) (StockReconciliation, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+reconciliationColumns+`
		FROM stock_reconciliations
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return scanReconciliation(row)
}

type ListStockReconciliationsParams struct {
	CompanyID uuid.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListStockReconciliations(ctx context.Context, arg ListStockReconciliationsParams) ([]StockReconciliation, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+reconciliationColumns+`
		FROM stock_reconciliations
		WHERE company_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		arg.CompanyID, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []StockReconciliation
	for rows.Next() {
		r, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}
