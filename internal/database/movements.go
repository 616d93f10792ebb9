package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const stockMovementColumns = `id, company_id, product_id, type, qty, order_id,
	central_order_id, notes, user_id, created_at`

func scanStockMovement(row interface{ Scan(dest ...any) error }) (StockMovement, error) {
	var m StockMovement
	err := row.Scan(
		&m.ID, &m.CompanyID, &m.ProductID, &m.Type, &m.Qty, &m.OrderID,
		&m.CentralOrderID, &m.Notes, &m.UserID, &m.CreatedAt,
	)
	return m, err
}

type CreateStockMovementParams struct {
	CompanyID      uuid.UUID
	ProductID      uuid.UUID
	Type           string
	Qty            int32
	OrderID        pgtype.UUID
	CentralOrderID pgtype.UUID
	Notes          pgtype.Text
	UserID         uuid.UUID
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO stock_movements (company_id, product_id, type, qty, order_id, central_order_id, notes, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+stockMovementColumns,
		arg.CompanyID, arg.ProductID, arg.Type, arg.Qty, arg.OrderID,
		arg.CentralOrderID, arg.Notes, arg.UserID,
	)
	return scanStockMovement(row)
}

type ListStockMovementsParams struct {
	CompanyID uuid.UUID
	ProductID pgtype.UUID
	Type      pgtype.Text
	From      pgtype.Timestamptz
	To        pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListStockMovements(ctx context.Context, arg ListStockMovementsParams) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+stockMovementColumns+`
		FROM stock_movements
		WHERE company_id = $1
		  AND ($2::uuid IS NULL OR product_id = $2)
		  AND ($3::text IS NULL OR type = $3)
		  AND ($4::timestamptz IS NULL OR created_at >= $4)
		  AND ($5::timestamptz IS NULL OR created_at < $5)
		ORDER BY created_at DESC
		LIMIT $6 OFFSET $7`,
		arg.CompanyID, arg.ProductID, arg.Type, arg.From, arg.To, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		m, err := scanStockMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// DeleteStockMovementsByCentralOrder removes the movements a central-order
// receive wrote. Only the receive rollback and the edit-diff path call this,
// always inside the transaction that re-applies the stock deltas.
func (q *Queries) DeleteStockMovementsByCentralOrder(ctx context.Context, centralOrderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM stock_movements
		WHERE central_order_id = $1`,
		centralOrderID,
	)
	return err
}
