package postgres

import (
	"context"
	"database/sql"
	"errors"
)

// AuthUser carries the credential fields the login flow needs.
type AuthUser struct {
	ID           string
	Name         string
	Email        string
	Role         string
	PasswordHash string
}

// GetUserByEmail returns nil when no user matches.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*AuthUser, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, password_hash
		FROM users WHERE email = $1
	`, email)
	var u AuthUser
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
