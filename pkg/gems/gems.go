// Package gems provides the gem catalog boundary: hosted gems, their
// published versions, and lookups used for webhook target resolution and
// delivery payloads.
package gems

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no gem exists with the requested name
	ErrNotFound = errors.New("gem not found")
	// ErrVersionNotFound is returned when a gem has no published versions
	ErrVersionNotFound = errors.New("version not found")
	// ErrGemExists is returned when creating a gem whose name is taken
	ErrGemExists = errors.New("gem already exists")
	// ErrVersionExists is returned when publishing a (number, platform)
	// pair the gem already has
	ErrVersionExists = errors.New("version already published")
)

// Gem is a hosted package
type Gem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Info       string    `json:"info"`
	ProjectURI string    `json:"project_uri"`
	CreatedAt  time.Time `json:"created_at"`
}

// Version is a published release of a gem
type Version struct {
	ID        int64     `json:"id"`
	GemName   string    `json:"gem_name"`
	Number    string    `json:"number"`
	Platform  string    `json:"platform"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the catalog persistence interface. Gem names are
// case-sensitive and matched exactly.
type Store interface {
	CreateGem(ctx context.Context, gem *Gem) error
	GetGem(ctx context.Context, name string) (*Gem, error)
	CountGems(ctx context.Context) (int64, error)

	PublishVersion(ctx context.Context, version *Version) error
	LatestVersion(ctx context.Context, gemName string) (*Version, error)

	// MostRecent returns the gem and version of the latest publish across
	// the whole catalog. Used for the global test-fire payload.
	MostRecent(ctx context.Context) (*Gem, *Version, error)
}
