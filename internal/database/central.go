package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const centralOrderColumns = `id, company_id, supplier_name, status, order_date, received_at,
	grand_total, transport_cost, returned_to_central, borrowed_from_central,
	sold_empty_to_central, created_by, created_at`

func scanCentralOrder(row interface{ Scan(dest ...any) error }) (CentralOrder, error) {
	var c CentralOrder
	err := row.Scan(
		&c.ID, &c.CompanyID, &c.SupplierName, &c.Status, &c.OrderDate, &c.ReceivedAt,
		&c.GrandTotal, &c.TransportCost, &c.ReturnedToCentral, &c.BorrowedFromCentral,
		&c.SoldEmptyToCentral, &c.CreatedBy, &c.CreatedAt,
	)
	return c, err
}

type CreateCentralOrderParams struct {
	CompanyID    uuid.UUID
	SupplierName string
	OrderDate    pgtype.Date
	CreatedBy    uuid.UUID
}

func (q *Queries) CreateCentralOrder(ctx context.Context, arg CreateCentralOrderParams) (CentralOrder, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO central_orders (company_id, supplier_name, order_date, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+centralOrderColumns,
		arg.CompanyID, arg.SupplierName, arg.OrderDate, arg.CreatedBy,
	)
	return scanCentralOrder(row)
}

type GetCentralOrderParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetCentralOrder(ctx context.Context, arg GetCentralOrderParams) (CentralOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+centralOrderColumns+`
		FROM central_orders
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return scanCentralOrder(row)
}

// GetCentralOrderForUpdate locks the row so receive, edit and rollback
// serialize. The status re-check happens under this lock.
func (q *Queries) GetCentralOrderForUpdate(ctx context.Context, arg GetCentralOrderParams) (CentralOrder, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+centralOrderColumns+`
		FROM central_orders
		WHERE id = $1 AND company_id = $2
		FOR NO KEY UPDATE`,
		arg.ID, arg.CompanyID,
	)
	return scanCentralOrder(row)
}

type ListCentralOrdersParams struct {
	CompanyID uuid.UUID
	Status    pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListCentralOrders(ctx context.Context, arg ListCentralOrdersParams) ([]CentralOrder, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+centralOrderColumns+`
		FROM central_orders
		WHERE company_id = $1
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.CompanyID, arg.Status, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []CentralOrder
	for rows.Next() {
		c, err := scanCentralOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, c)
	}
	return orders, rows.Err()
}

type SetCentralOrderReceivedParams struct {
	ID                  uuid.UUID
	CompanyID           uuid.UUID
	Status              string
	GrandTotal          pgtype.Numeric
	TransportCost       pgtype.Numeric
	ReturnedToCentral   []byte
	BorrowedFromCentral []byte
	SoldEmptyToCentral  []byte
}

// SetCentralOrderReceived writes the settlement result of a central receive
// (or re-writes it on edit). The container maps are JSONB keyed by product id.
func (q *Queries) SetCentralOrderReceived(ctx context.Context, arg SetCentralOrderReceivedParams) (CentralOrder, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE central_orders
		SET status = $3,
		    grand_total = $4,
		    transport_cost = $5,
		    returned_to_central = $6,
		    borrowed_from_central = $7,
		    sold_empty_to_central = $8,
		    received_at = now()
		WHERE id = $1 AND company_id = $2
		RETURNING `+centralOrderColumns,
		arg.ID, arg.CompanyID, arg.Status, arg.GrandTotal, arg.TransportCost,
		arg.ReturnedToCentral, arg.BorrowedFromCentral, arg.SoldEmptyToCentral,
	)
	return scanCentralOrder(row)
}

type RollbackCentralOrderParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

// RollbackCentralOrder reverts a received order to draft and clears its
// settlement fields. Stock reversal and movement deletion run in the same
// transaction before this call.
func (q *Queries) RollbackCentralOrder(ctx context.Context, arg RollbackCentralOrderParams) (CentralOrder, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE central_orders
		SET status = 'DRAFT',
		    grand_total = 0,
		    transport_cost = 0,
		    returned_to_central = NULL,
		    borrowed_from_central = NULL,
		    sold_empty_to_central = NULL,
		    received_at = NULL
		WHERE id = $1 AND company_id = $2 AND status = 'RECEIVED'
		RETURNING `+centralOrderColumns,
		arg.ID, arg.CompanyID,
	)
	return scanCentralOrder(row)
}

func (q *Queries) DeleteCentralOrder(ctx context.Context, arg GetCentralOrderParams) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM central_orders
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return err
}

type CreateCentralOrderItemParams struct {
	CentralOrderID uuid.UUID
	ProductID      uuid.UUID
	Qty            int32
	Price          pgtype.Numeric
}

func (q *Queries) CreateCentralOrderItem(ctx context.Context, arg CreateCentralOrderItemParams) (CentralOrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO central_order_items (central_order_id, product_id, qty, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, central_order_id, product_id, qty, received_qty, price`,
		arg.CentralOrderID, arg.ProductID, arg.Qty, arg.Price,
	)
	var i CentralOrderItem
	err := row.Scan(&i.ID, &i.CentralOrderID, &i.ProductID, &i.Qty, &i.ReceivedQty, &i.Price)
	return i, err
}

func (q *Queries) ListCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) ([]CentralOrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, central_order_id, product_id, qty, received_qty, price
		FROM central_order_items
		WHERE central_order_id = $1
		ORDER BY id`,
		centralOrderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []CentralOrderItem
	for rows.Next() {
		var i CentralOrderItem
		if err := rows.Scan(&i.ID, &i.CentralOrderID, &i.ProductID, &i.Qty, &i.ReceivedQty, &i.Price); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type SetCentralOrderItemReceivedParams struct {
	ID          uuid.UUID
	ReceivedQty int32
}

func (q *Queries) SetCentralOrderItemReceived(ctx context.Context, arg SetCentralOrderItemReceivedParams) (CentralOrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE central_order_items
		SET received_qty = $2
		WHERE id = $1
		RETURNING id, central_order_id, product_id, qty, received_qty, price`,
		arg.ID, arg.ReceivedQty,
	)
	var i CentralOrderItem
	err := row.Scan(&i.ID, &i.CentralOrderID, &i.ProductID, &i.Qty, &i.ReceivedQty, &i.Price)
	return i, err
}

func (q *Queries) DeleteCentralOrderItems(ctx context.Context, centralOrderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM central_order_items
		WHERE central_order_id = $1`,
		centralOrderID,
	)
	return err
}
