package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, company_id, name, stock, empty_bottle_stock, is_returnable,
	price, purchase_price, empty_bottle_price, is_active, created_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Stock, &p.EmptyBottleStock, &p.IsReturnable,
		&p.Price, &p.PurchasePrice, &p.EmptyBottlePrice, &p.IsActive, &p.CreatedAt,
	)
	return p, err
}

type CreateProductParams struct {
	CompanyID        uuid.UUID
	Name             string
	Stock            int32
	EmptyBottleStock int32
	IsReturnable     bool
	Price            pgtype.Numeric
	PurchasePrice    pgtype.Numeric
	EmptyBottlePrice pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO products (company_id, name, stock, empty_bottle_stock, is_returnable,
			price, purchase_price, empty_bottle_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		arg.CompanyID, arg.Name, arg.Stock, arg.EmptyBottleStock, arg.IsReturnable,
		arg.Price, arg.PurchasePrice, arg.EmptyBottlePrice,
	)
	return scanProduct(row)
}

type GetProductParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND company_id = $2 AND is_active`,
		arg.ID, arg.CompanyID,
	)
	return scanProduct(row)
}

// GetProductForUpdate locks the product row for the rest of the transaction.
// Settlement engines take this lock before adjusting both stock counters so
// two settlements on the same product serialize.
func (q *Queries) GetProductForUpdate(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1 AND company_id = $2 AND is_active
		FOR NO KEY UPDATE`,
		arg.ID, arg.CompanyID,
	)
	return scanProduct(row)
}

func (q *Queries) ListProductsByCompany(ctx context.Context, companyID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE company_id = $1 AND is_active
		ORDER BY name`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type UpdateProductParams struct {
	ID               uuid.UUID
	CompanyID        uuid.UUID
	Name             string
	IsReturnable     bool
	Price            pgtype.Numeric
	PurchasePrice    pgtype.Numeric
	EmptyBottlePrice pgtype.Numeric
}

// UpdateProduct never touches the stock counters; those move only through
// AdjustProductStock / AdjustEmptyBottleStock / the reconciliation setters.
func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET name = $3, is_returnable = $4, price = $5, purchase_price = $6, empty_bottle_price = $7
		WHERE id = $1 AND company_id = $2 AND is_active
		RETURNING `+productColumns,
		arg.ID, arg.CompanyID, arg.Name, arg.IsReturnable,
		arg.Price, arg.PurchasePrice, arg.EmptyBottlePrice,
	)
	return scanProduct(row)
}

type SoftDeleteProductParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) SoftDeleteProduct(ctx context.Context, arg SoftDeleteProductParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET is_active = false
		WHERE id = $1 AND company_id = $2 AND is_active
		RETURNING id`,
		arg.ID, arg.CompanyID,
	)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

type AdjustStockParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Delta     int32
}

// AdjustProductStock applies a relative delta to the sellable stock counter
// as a single atomic statement. The counter is deliberately unguarded: any
// integer delta is accepted, callers own input validation.
func (q *Queries) AdjustProductStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $3
		WHERE id = $1 AND company_id = $2
		RETURNING stock`,
		arg.ID, arg.CompanyID, arg.Delta,
	)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

// AdjustEmptyBottleStock is the empty-container counterpart of
// AdjustProductStock.
func (q *Queries) AdjustEmptyBottleStock(ctx context.Context, arg AdjustStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET empty_bottle_stock = empty_bottle_stock + $3
		WHERE id = $1 AND company_id = $2
		RETURNING empty_bottle_stock`,
		arg.ID, arg.CompanyID, arg.Delta,
	)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

type SetStockParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Value     int32
}

// SetProductStock sets the sellable counter to an absolute value.
// Reconciliation is the only caller; every other path uses deltas.
func (q *Queries) SetProductStock(ctx context.Context, arg SetStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET stock = $3
		WHERE id = $1 AND company_id = $2
		RETURNING stock`,
		arg.ID, arg.CompanyID, arg.Value,
	)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}

// SetEmptyBottleStock sets the empty-container counter to an absolute value.
// Reconciliation only.
func (q *Queries) SetEmptyBottleStock(ctx context.Context, arg SetStockParams) (int32, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE products
		SET empty_bottle_stock = $3
		WHERE id = $1 AND company_id = $2
		RETURNING empty_bottle_stock`,
		arg.ID, arg.CompanyID, arg.Value,
	)
	var stock int32
	err := row.Scan(&stock)
	return stock, err
}
