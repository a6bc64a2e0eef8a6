package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tokoline/sales-api/internal/enum"
)

type User struct {
	ID             uuid.UUID
	Name           string
	Email          string
	HashedPassword string
	Role           enum.Role
	IsActive       bool
	CreatedAt      time.Time
}

const userColumns = `id, name, email, hashed_password, role, is_active, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.HashedPassword, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

type CreateUserParams struct {
	Name           string
	Email          string
	HashedPassword string
	Role           enum.Role
}

// CreateUser inserts a user, or refreshes name, password and role when the
// email already exists.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, `
		INSERT INTO users (name, email, hashed_password, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name, hashed_password = EXCLUDED.hashed_password, role = EXCLUDED.role
		RETURNING `+userColumns,
		arg.Name, arg.Email, arg.HashedPassword, arg.Role))
}
