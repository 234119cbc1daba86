package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const createUser = `
INSERT INTO users (username, first_name, last_name, email, hashed_password, role, contact_number, address)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, username, first_name, last_name, email, hashed_password, role, contact_number, address, created_at
`

type CreateUserParams struct {
	Username       string
	FirstName      string
	LastName       string
	Email          string
	HashedPassword string
	Role           UserRole
	ContactNumber  pgtype.Text
	Address        pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Username,
		arg.FirstName,
		arg.LastName,
		arg.Email,
		arg.HashedPassword,
		arg.Role,
		arg.ContactNumber,
		arg.Address,
	)
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.HashedPassword,
		&u.Role,
		&u.ContactNumber,
		&u.Address,
		&u.CreatedAt,
	)
	return u, err
}

const getUserByEmail = `
SELECT id, username, first_name, last_name, email, hashed_password, role, contact_number, address, created_at
FROM users
WHERE email = $1
`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.HashedPassword,
		&u.Role,
		&u.ContactNumber,
		&u.Address,
		&u.CreatedAt,
	)
	return u, err
}

const getUserByID = `
SELECT id, username, first_name, last_name, email, hashed_password, role, contact_number, address, created_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	var u User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.HashedPassword,
		&u.Role,
		&u.ContactNumber,
		&u.Address,
		&u.CreatedAt,
	)
	return u, err
}

const listUsers = `
SELECT id, username, first_name, last_name, email, hashed_password, role, contact_number, address, created_at
FROM users
ORDER BY created_at
`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.FirstName,
			&u.LastName,
			&u.Email,
			&u.HashedPassword,
			&u.Role,
			&u.ContactNumber,
			&u.Address,
			&u.CreatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
