package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type UpsertOrderGalonItemParams struct {
	OrderID           uuid.UUID
	ProductID         uuid.UUID
	ReturnedQty       int32
	BorrowedQty       int32
	PurchasedEmptyQty int32
}

// UpsertOrderGalonItem replaces any prior container-ledger line for the
// (order, product) pair, which keeps the settlement idempotent on retry.
func (q *Queries) UpsertOrderGalonItem(ctx context.Context, arg UpsertOrderGalonItemParams) (OrderGalonItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_galon_items (order_id, product_id, returned_qty, borrowed_qty, purchased_empty_qty)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (order_id, product_id) DO UPDATE
		SET returned_qty = EXCLUDED.returned_qty,
		    borrowed_qty = EXCLUDED.borrowed_qty,
		    purchased_empty_qty = EXCLUDED.purchased_empty_qty
		RETURNING order_id, product_id, returned_qty, borrowed_qty, purchased_empty_qty`,
		arg.OrderID, arg.ProductID, arg.ReturnedQty, arg.BorrowedQty, arg.PurchasedEmptyQty,
	)
	var g OrderGalonItem
	err := row.Scan(&g.OrderID, &g.ProductID, &g.ReturnedQty, &g.BorrowedQty, &g.PurchasedEmptyQty)
	return g, err
}

func (q *Queries) ListOrderGalonItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderGalonItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT order_id, product_id, returned_qty, borrowed_qty, purchased_empty_qty
		FROM order_galon_items
		WHERE order_id = $1
		ORDER BY product_id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderGalonItem
	for rows.Next() {
		var g OrderGalonItem
		if err := rows.Scan(&g.OrderID, &g.ProductID, &g.ReturnedQty, &g.BorrowedQty, &g.PurchasedEmptyQty); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

// GalonDeliveryEventRow is one delivery event feeding the container-debt
// fold: how many returnable units reached the customer in one order and how
// many came back (returned or bought empty) at settlement time.
type GalonDeliveryEventRow struct {
	OrderID           uuid.UUID
	DeliveredAt       pgtype.Timestamptz
	ProductID         uuid.UUID
	DeliveredQty      int32
	ReturnedQty       int32
	PurchasedEmptyQty int32
}

type ListGalonDeliveryEventsParams struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
}

// ListGalonDeliveryEvents returns every completed delivery of a returnable
// product to the customer in chronological order (order id breaks ties).
// The debt balance is always recomputed from these rows, never stored.
func (q *Queries) ListGalonDeliveryEvents(ctx context.Context, arg ListGalonDeliveryEventsParams) ([]GalonDeliveryEventRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.id,
		       o.delivered_at,
		       oi.product_id,
		       SUM(oi.qty)::int AS delivered_qty,
		       COALESCE(g.returned_qty, 0),
		       COALESCE(g.purchased_empty_qty, 0)
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		JOIN products p ON p.id = oi.product_id AND p.is_returnable
		LEFT JOIN order_galon_items g ON g.order_id = o.id AND g.product_id = oi.product_id
		WHERE o.company_id = $1
		  AND o.customer_id = $2
		  AND o.status = 'COMPLETED'
		GROUP BY o.id, o.delivered_at, oi.product_id, g.returned_qty, g.purchased_empty_qty
		ORDER BY o.delivered_at, o.id::text, oi.product_id`,
		arg.CompanyID, arg.CustomerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []GalonDeliveryEventRow
	for rows.Next() {
		var e GalonDeliveryEventRow
		if err := rows.Scan(&e.OrderID, &e.DeliveredAt, &e.ProductID, &e.DeliveredQty, &e.ReturnedQty, &e.PurchasedEmptyQty); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type ListGalonSettlementsParams struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
}

func (q *Queries) ListGalonSettlements(ctx context.Context, arg ListGalonSettlementsParams) ([]GalonSettlement, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, company_id, customer_id, product_id, settled_at, created_by
		FROM galon_settlements
		WHERE company_id = $1 AND customer_id = $2
		ORDER BY settled_at, id::text`,
		arg.CompanyID, arg.CustomerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settlements []GalonSettlement
	for rows.Next() {
		var s GalonSettlement
		if err := rows.Scan(&s.ID, &s.CompanyID, &s.CustomerID, &s.ProductID, &s.SettledAt, &s.CreatedBy); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}
	return settlements, rows.Err()
}

type CreateGalonSettlementParams struct {
	CompanyID  uuid.UUID
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	CreatedBy  uuid.UUID
}

func (q *Queries) CreateGalonSettlement(ctx context.Context, arg CreateGalonSettlementParams) (GalonSettlement, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO galon_settlements (company_id, customer_id, product_id, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, company_id, customer_id, product_id, settled_at, created_by`,
		arg.CompanyID, arg.CustomerID, arg.ProductID, arg.CreatedBy,
	)
	var s GalonSettlement
	err := row.Scan(&s.ID, &s.CompanyID, &s.CustomerID, &s.ProductID, &s.SettledAt, &s.CreatedBy)
	return s, err
}
