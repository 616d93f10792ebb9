package database

import (
	"context"

	"github.com/google/uuid"
)

const userColumns = `id, company_id, email, hashed_password, full_name, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.CreatedAt)
	return u, err
}

type CreateUserParams struct {
	CompanyID      uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (company_id, email, hashed_password, full_name, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		arg.CompanyID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role,
	)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1`,
		email,
	)
	return scanUser(row)
}

func (q *Queries) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1`,
		id,
	)
	return scanUser(row)
}

func (q *Queries) ListUsersByCompany(ctx context.Context, companyID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id = $1
		ORDER BY full_name`,
		companyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type UpdateUserParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	FullName  string
	Role      string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users
		SET full_name = $3, role = $4
		WHERE id = $1 AND company_id = $2
		RETURNING `+userColumns,
		arg.ID, arg.CompanyID, arg.FullName, arg.Role,
	)
	return scanUser(row)
}

type UpdateUserPasswordParams struct {
	ID             uuid.UUID
	HashedPassword string
}

func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users
		SET hashed_password = $2
		WHERE id = $1`,
		arg.ID, arg.HashedPassword,
	)
	return err
}

type DeleteUserParams struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
}

func (q *Queries) DeleteUser(ctx context.Context, arg DeleteUserParams) error {
	_, err := q.db.Exec(ctx, `
		DELETE FROM users
		WHERE id = $1 AND company_id = $2`,
		arg.ID, arg.CompanyID,
	)
	return err
}
