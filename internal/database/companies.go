package database

import (
	"context"

	"github.com/google/uuid"
)

func (q *Queries) CreateCompany(ctx context.Context, name string) (Company, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO companies (name)
		VALUES ($1)
		RETURNING id, name, created_at`,
		name,
	)
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, err
}

func (q *Queries) GetCompany(ctx context.Context, id uuid.UUID) (Company, error) {
	row := q.db.QueryRow(ctx, `
		SELECT id, name, created_at
		FROM companies
		WHERE id = $1`,
		id,
	)
	var c Company
	err := row.Scan(&c.ID, &c.Name, &c.CreatedAt)
	return c, err
}

func (q *Queries) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, name, created_at
		FROM companies
		ORDER BY name`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, err
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
