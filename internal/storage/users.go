package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

func (r *SQLiteRepository) CreateUser(ctx context.Context, email, passwordHash string) (datastore.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return datastore.User{}, core.FieldError("email", "Email is required")
	}
	u := datastore.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: r.now().UTC()}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		u.ID, u.Email, u.PasswordHash, formatTime(u.CreatedAt))
	if err != nil {
		return datastore.User{}, mapError("create_user", err)
	}
	return u, nil
}

func (r *SQLiteRepository) UserByEmail(ctx context.Context, email string) (datastore.User, error) {
	var (
		u       datastore.User
		created string
	)
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?",
		strings.ToLower(strings.TrimSpace(email))).Scan(&u.ID, &u.Email, &u.PasswordHash, &created)
	if err != nil {
		return datastore.User{}, mapError("user_by_email", err)
	}
	if u.CreatedAt, err = parseTime(created); err != nil {
		return datastore.User{}, mapError("user_by_email", err)
	}
	return u, nil
}
