package gems

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code for unique constraint violations
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates the catalog tables if needed and returns a store
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS gems (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			info TEXT NOT NULL DEFAULT '',
			project_uri TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS versions (
			id BIGSERIAL PRIMARY KEY,
			gem_id BIGINT NOT NULL REFERENCES gems(id) ON DELETE CASCADE,
			number TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT 'ruby',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (gem_id, number, platform)
		)
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create catalog tables: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// CreateGem implements Store
func (s *PostgresStore) CreateGem(ctx context.Context, gem *Gem) error {
	query := `
		INSERT INTO gems (name, info, project_uri)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query, gem.Name, gem.Info, gem.ProjectURI).
		Scan(&gem.ID, &gem.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrGemExists
		}
		return fmt.Errorf("failed to create gem: %w", err)
	}
	return nil
}

// GetGem implements Store
func (s *PostgresStore) GetGem(ctx context.Context, name string) (*Gem, error) {
	query := `
		SELECT id, name, info, project_uri, created_at
		FROM gems
		WHERE name = $1
	`

	var gem Gem
	err := s.db.QueryRowContext(ctx, query, name).Scan(
		&gem.ID,
		&gem.Name,
		&gem.Info,
		&gem.ProjectURI,
		&gem.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get gem: %w", err)
	}
	return &gem, nil
}

// CountGems implements Store
func (s *PostgresStore) CountGems(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM gems").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count gems: %w", err)
	}
	return count, nil
}

// PublishVersion implements Store
func (s *PostgresStore) PublishVersion(ctx context.Context, version *Version) error {
	query := `
		INSERT INTO versions (gem_id, number, platform)
		SELECT id, $2, $3 FROM gems WHERE name = $1
		RETURNING id, created_at
	`

	if version.Platform == "" {
		version.Platform = "ruby"
	}

	err := s.db.QueryRowContext(ctx, query, version.GemName, version.Number, version.Platform).
		Scan(&version.ID, &version.CreatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	} else if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
			return ErrVersionExists
		}
		return fmt.Errorf("failed to publish version: %w", err)
	}
	return nil
}

// LatestVersion implements Store
func (s *PostgresStore) LatestVersion(ctx context.Context, gemName string) (*Version, error) {
	query := `
		SELECT v.id, g.name, v.number, v.platform, v.created_at
		FROM versions v
		JOIN gems g ON v.gem_id = g.id
		WHERE g.name = $1
		ORDER BY v.id DESC
		LIMIT 1
	`

	var version Version
	err := s.db.QueryRowContext(ctx, query, gemName).Scan(
		&version.ID,
		&version.GemName,
		&version.Number,
		&version.Platform,
		&version.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrVersionNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}
	return &version, nil
}

// MostRecent implements Store
func (s *PostgresStore) MostRecent(ctx context.Context) (*Gem, *Version, error) {
	query := `
		SELECT g.id, g.name, g.info, g.project_uri, g.created_at,
		       v.id, v.number, v.platform, v.created_at
		FROM versions v
		JOIN gems g ON v.gem_id = g.id
		ORDER BY v.id DESC
		LIMIT 1
	`

	var gem Gem
	var version Version
	err := s.db.QueryRowContext(ctx, query).Scan(
		&gem.ID,
		&gem.Name,
		&gem.Info,
		&gem.ProjectURI,
		&gem.CreatedAt,
		&version.ID,
		&version.Number,
		&version.Platform,
		&version.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, ErrVersionNotFound
	} else if err != nil {
		return nil, nil, fmt.Errorf("failed to get most recent version: %w", err)
	}
	version.GemName = gem.Name
	return &gem, &version, nil
}
