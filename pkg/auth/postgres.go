package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresKeyring resolves API keys against the users table
type PostgresKeyring struct {
	db *sql.DB
}

// NewPostgresKeyring creates the users table if needed and returns a keyring
func NewPostgresKeyring(db *sql.DB) (*PostgresKeyring, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			handle TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			api_key_hash TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create users table: %w", err)
	}
	return &PostgresKeyring{db: db}, nil
}

// UserForKey implements Keyring
func (k *PostgresKeyring) UserForKey(ctx context.Context, key string) (*User, error) {
	query := `
		SELECT id, handle, email, created_at
		FROM users
		WHERE api_key_hash = $1
	`

	var user User
	err := k.db.QueryRowContext(ctx, query, HashKey(key)).Scan(
		&user.ID,
		&user.Handle,
		&user.Email,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidKey
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	return &user, nil
}

// CreateUser inserts a user with the given raw API key and returns it
func (k *PostgresKeyring) CreateUser(ctx context.Context, handle, email, key string) (*User, error) {
	query := `
		INSERT INTO users (handle, email, api_key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	user := &User{Handle: handle, Email: email}
	err := k.db.QueryRowContext(ctx, query, handle, email, HashKey(key)).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
