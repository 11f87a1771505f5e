package webhooks

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code for unique constraint violations
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL. The global target is
// stored as the literal "*" in a NOT NULL column so the three-column
// unique constraint covers global hooks; concurrent creates of the same
// triple race on the constraint, not on application code.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the web_hooks table if needed and returns a store
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS web_hooks (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			gem_name TEXT NOT NULL,
			url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT web_hooks_owner_target_url_key UNIQUE (user_id, gem_name, url)
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create web_hooks table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Create implements Store
func (s *PostgresStore) Create(ctx context.Context, hook *Hook) error {
	query := `
		INSERT INTO web_hooks (user_id, gem_name, url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, hook.UserID, hook.Target.Key(), hook.URL).
		Scan(&hook.ID, &hook.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	return nil
}

// ListByUser implements Store
func (s *PostgresStore) ListByUser(ctx context.Context, userID int64) ([]*Hook, error) {
	query := `
		SELECT id, user_id, gem_name, url, created_at
		FROM web_hooks
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	return scanHooks(rows)
}

// Delete implements Store
func (s *PostgresStore) Delete(ctx context.Context, userID int64, target Target, url string) (*Hook, error) {
	query := `
		DELETE FROM web_hooks
		WHERE user_id = $1 AND gem_name = $2 AND url = $3
		RETURNING id, user_id, gem_name, url, created_at
	`

	hook, err := scanHook(s.db.QueryRowContext(ctx, query, userID, target.Key(), url))
	if err == sql.ErrNoRows {
		return nil, ErrHookNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to delete webhook: %w", err)
	}
	return hook, nil
}

// ListByGem implements Store
func (s *PostgresStore) ListByGem(ctx context.Context, gemName string) ([]*Hook, error) {
	query := `
		SELECT id, user_id, gem_name, url, created_at
		FROM web_hooks
		WHERE gem_name = $1 OR gem_name = $2
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, gemName, GlobalPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks for gem: %w", err)
	}
	defer rows.Close()

	return scanHooks(rows)
}

// Get implements Store
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Hook, error) {
	query := `
		SELECT id, user_id, gem_name, url, created_at
		FROM web_hooks
		WHERE id = $1
	`

	hook, err := scanHook(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrHookNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}
	return hook, nil
}

// Count implements Store
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM web_hooks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count webhooks: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHook(row rowScanner) (*Hook, error) {
	var hook Hook
	var targetKey string
	if err := row.Scan(&hook.ID, &hook.UserID, &targetKey, &hook.URL, &hook.CreatedAt); err != nil {
		return nil, err
	}
	hook.Target = TargetFromKey(targetKey)
	return &hook, nil
}

func scanHooks(rows *sql.Rows) ([]*Hook, error) {
	var hooks []*Hook
	for rows.Next() {
		hook, err := scanHook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		hooks = append(hooks, hook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}
	return hooks, nil
}
