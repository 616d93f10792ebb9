package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const customerColumns = `id, company_id, name, phone, address, is_active, created_at`

func scanCustomer(row interface{ Scan(dest ...any) error }) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Phone, &c.Address, &c.IsActive, &c.CreatedAt)
	return c, err
}

type CreateCustomerParams struct {
	CompanyID uuid.UUID
	Name      string
	Phone     pgtype.Text
	Address   pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO customers (company_id, name, phone, address)
		VALUES ($1, $2, $3, $4)
		RETURNING `+customerColumns,
		arg.CompanyID, arg.Name, arg.Phone, arg.Address,
	)
	return scanCustomer(row)
}

type GetCustomerParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetCustomer(ctx context.Context, arg GetCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1 AND company_id = $2 AND is_active`,
		arg.ID, arg.CompanyID,
	)
	return scanCustomer(row)
}

type ListCustomersParams struct {
	CompanyID uuid.UUID
	Search    pgtype.Text
	Limit     int32
	Offset    int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE company_id = $1 AND is_active
		  AND ($2::text IS NULL OR name ILIKE '%' || $2 || '%')
		ORDER BY name
		LIMIT $3 OFFSET $4`,
		arg.CompanyID, arg.Search, arg.Limit, arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

type UpdateCustomerParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Name      string
	Phone     pgtype.Text
	Address   pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE customers
		SET name = $3, phone = $4, address = $5
		WHERE id = $1 AND company_id = $2 AND is_active
		RETURNING `+customerColumns,
		arg.ID, arg.CompanyID, arg.Name, arg.Phone, arg.Address,
	)
	return scanCustomer(row)
}

func (q *Queries) SoftDeleteCustomer(ctx context.Context, arg GetCustomerParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE customers
		SET is_active = false
		WHERE id = $1 AND company_id = $2 AND is_active
		RETURNING id`,
		arg.ID, arg.CompanyID,
	)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}
