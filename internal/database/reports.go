package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// BalanceRow is the cash position for one payment method. Income counts
// customer payments plus every income transaction not sourced from an order;
// order-sourced income rows (transport, empty-bottle sales) are folded into
// the order grand total and realized through payments, so counting them again
// would double-book. Expense-report payouts are summed from the PAID reports
// themselves, so their sourced transactions are excluded the same way.
type BalanceRow struct {
	PaymentMethod string
	Income        pgtype.Numeric
	Expense       pgtype.Numeric
}

type BalanceReportParams struct {
	CompanyID uuid.UUID
	From      pgtype.Timestamptz
	To        pgtype.Timestamptz
}

func (q *Queries) BalanceReport(ctx context.Context, arg BalanceReportParams) ([]BalanceRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT payment_method,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0) AS income,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0) AS expense
		FROM (
			SELECT p.payment_method, p.amount, 'INCOME' AS type, p.created_at
			FROM payments p
			JOIN orders o ON o.id = p.order_id
			WHERE o.company_id = $1
			UNION ALL
			SELECT ft.payment_method, ft.amount, ft.type, ft.created_at
			FROM financial_transactions ft
			WHERE ft.company_id = $1
			  AND (ft.source_table IS NULL OR ft.source_table NOT IN ('orders', 'expense_reports'))
			UNION ALL
			SELECT er.payment_method, er.amount, 'EXPENSE' AS type, er.paid_at
			FROM expense_reports er
			WHERE er.company_id = $1 AND er.status = 'PAID'
		) entries
		WHERE ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		GROUP BY payment_method
		ORDER BY payment_method`,
		arg.CompanyID, arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var balances []BalanceRow
	for rows.Next() {
		var b BalanceRow
		if err := rows.Scan(&b.PaymentMethod, &b.Income, &b.Expense); err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}

// DailyCashflowRow aggregates the same entry set as BalanceReport per day.
type DailyCashflowRow struct {
	Day     time.Time
	Income  pgtype.Numeric
	Expense pgtype.Numeric
}

func (q *Queries) DailyCashflowReport(ctx context.Context, arg BalanceReportParams) ([]DailyCashflowRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT date_trunc('day', created_at) AS day,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'INCOME'), 0) AS income,
		       COALESCE(SUM(amount) FILTER (WHERE type = 'EXPENSE'), 0) AS expense
		FROM (
			SELECT p.amount, 'INCOME' AS type, p.created_at
			FROM payments p
			JOIN orders o ON o.id = p.order_id
			WHERE o.company_id = $1
			UNION ALL
			SELECT ft.amount, ft.type, ft.created_at
			FROM financial_transactions ft
			WHERE ft.company_id = $1
			  AND (ft.source_table IS NULL OR ft.source_table NOT IN ('orders', 'expense_reports'))
			UNION ALL
			SELECT er.amount, 'EXPENSE' AS type, er.paid_at
			FROM expense_reports er
			WHERE er.company_id = $1 AND er.status = 'PAID'
		) entries
		WHERE ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3)
		GROUP BY 1
		ORDER BY 1`,
		arg.CompanyID, arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []DailyCashflowRow
	for rows.Next() {
		var d DailyCashflowRow
		if err := rows.Scan(&d.Day, &d.Income, &d.Expense); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// SalesSummaryRow reports delivered quantity and revenue per product over
// completed orders.
type SalesSummaryRow struct {
	ProductID   uuid.UUID
	ProductName string
	TotalQty    int64
	Revenue     pgtype.Numeric
}

func (q *Queries) SalesSummaryReport(ctx context.Context, arg BalanceReportParams) ([]SalesSummaryRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT p.id, p.name,
		       COALESCE(SUM(oi.qty), 0) AS total_qty,
		       COALESCE(SUM(oi.qty * oi.price), 0) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN products p ON p.id = oi.product_id
		WHERE o.company_id = $1
		  AND o.status = 'COMPLETED'
		  AND ($2::timestamptz IS NULL OR o.delivered_at >= $2)
		  AND ($3::timestamptz IS NULL OR o.delivered_at < $3)
		GROUP BY p.id, p.name
		ORDER BY revenue DESC`,
		arg.CompanyID, arg.From, arg.To,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summary []SalesSummaryRow
	for rows.Next() {
		var s SalesSummaryRow
		if err := rows.Scan(&s.ProductID, &s.ProductName, &s.TotalQty, &s.Revenue); err != nil {
			return nil, err
		}
		summary = append(summary, s)
	}
	return summary, rows.Err()
}

// ReceivableRow is one completed order that still has money outstanding.
type ReceivableRow struct {
	OrderID       uuid.UUID
	CustomerID    uuid.UUID
	CustomerName  string
	GrandTotal    pgtype.Numeric
	TotalPaid     pgtype.Numeric
	PaymentStatus string
	DeliveredAt   pgtype.Timestamptz
}

func (q *Queries) ReceivablesReport(ctx context.Context, companyID uuid.UUID) ([]ReceivableRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.id, c.id, c.name, o.grand_total,
		       COALESCE(SUM(p.amount), 0) AS total_paid,
		       o.payment_status, o.delivered_at
		FROM orders o
		JOIN customers c ON c.id = o.customer_id
		LEFT JOIN payments p ON p.order_id = o.id
		WHERE o.company_id = $1
		  AND o.status = 'COMPLETED'
		  AND o.payment_status <> 'PAID'
		GROUP BY o.id, c.id, c.name
		ORDER BY o.delivered_at`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receivables []ReceivableRow
	for rows.Next() {
		var r ReceivableRow
		if err := rows.Scan(&r.OrderID, &r.CustomerID, &r.CustomerName, &r.GrandTotal, &r.TotalPaid, &r.PaymentStatus, &r.DeliveredAt); err != nil {
			return nil, err
		}
		receivables = append(receivables, r)
	}
	return receivables, rows.Err()
}
