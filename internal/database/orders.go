package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, company_id, customer_id, courier_id, status, payment_status,
	planned_date, grand_total, transport_cost, returned_qty, borrowed_qty,
	purchased_empty_qty, proof_ref, delivered_at, created_by, created_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.CompanyID, &o.CustomerID, &o.CourierID, &o.Status, &o.PaymentStatus,
		&o.PlannedDate, &o.GrandTotal, &o.TransportCost, &o.ReturnedQty, &o.BorrowedQty,
		&o.PurchasedEmptyQty, &o.ProofRef, &o.DeliveredAt, &o.CreatedBy, &o.CreatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	CompanyID   uuid.UUID
	CustomerID  uuid.UUID
	PlannedDate pgtype.Date
	CreatedBy   uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (company_id, customer_id, planned_date, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		arg.CompanyID, arg.CustomerID, arg.PlannedDate, arg.CreatedBy,
	)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Qty       int32
	Price     pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, product_id, qty, price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_id, product_id, qty, price`,
		arg.OrderID, arg.ProductID, arg.Qty, arg.Price,
	)
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Qty, &i.Price)
	return i, err
}

type GetOrderParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row so a settlement or payment insert
// serializes against concurrent writers. This is the one-shot gate for
// completeDelivery: the status re-check happens under this lock.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1 AND company_id = $2
		FOR NO KEY UPDATE`,
		arg.ID, arg.CompanyID,
	)
	return scanOrder(row)
}

type ListOrdersParams struct {
	CompanyID uuid.UUID
	Status    pgtype.Text
	CourierID pgtype.UUID
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE company_id = $1
		  AND ($2::text IS NULL OR status = $2)
		  AND ($3::uuid IS NULL OR courier_id = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.CompanyID, arg.Status, arg.CourierID, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, product_id, qty, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var i OrderItem
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Qty, &i.Price); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

type AssignCourierParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	CourierID uuid.UUID
}

// AssignCourier moves a DRAFT order to SENT. The status predicate makes the
// transition atomic; pgx.ErrNoRows means the order was not assignable.
func (q *Queries) AssignCourier(ctx context.Context, arg AssignCourierParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET courier_id = $3, status = 'SENT'
		WHERE id = $1 AND company_id = $2 AND status = 'DRAFT'
		RETURNING `+orderColumns,
		arg.ID, arg.CompanyID, arg.CourierID,
	)
	return scanOrder(row)
}

type CompleteOrderParams struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	PaymentStatus     string
	GrandTotal        pgtype.Numeric
	TransportCost     pgtype.Numeric
	ReturnedQty       int32
	BorrowedQty       int32
	PurchasedEmptyQty int32
	ProofRef          pgtype.Text
}

// CompleteOrder writes the settlement result. The status predicate is the
// exactly-once guard: a second settlement finds zero rows.
func (q *Queries) CompleteOrder(ctx context.Context, arg CompleteOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'COMPLETED',
		    payment_status = $3,
		    grand_total = $4,
		    transport_cost = $5,
		    returned_qty = $6,
		    borrowed_qty = $7,
		    purchased_empty_qty = $8,
		    proof_ref = $9,
		    delivered_at = now()
		WHERE id = $1 AND company_id = $2 AND status <> 'COMPLETED'
		RETURNING `+orderColumns,
		arg.ID, arg.CompanyID, arg.PaymentStatus, arg.GrandTotal, arg.TransportCost,
		arg.ReturnedQty, arg.BorrowedQty, arg.PurchasedEmptyQty, arg.ProofRef,
	)
	return scanOrder(row)
}

type UpdateOrderPaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus string
}

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET payment_status = $2
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.PaymentStatus,
	)
	return scanOrder(row)
}
