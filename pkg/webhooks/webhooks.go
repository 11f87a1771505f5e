package webhooks

import (
	"context"
	"errors"
	"time"
)

// GlobalPattern is the reserved gem_name meaning "every gem". It is not a
// valid gem name, so it can never shadow a hosted gem.
const GlobalPattern = "*"

var (
	// ErrTargetNotFound is returned when a gem_name resolves to no hosted gem
	ErrTargetNotFound = errors.New("gem could not be found")
	// ErrConflict is returned when the (owner, target, url) triple already exists
	ErrConflict = errors.New("webhook already registered")
	// ErrHookNotFound is returned when no hook matches (owner, target, url).
	// A hook owned by someone else does not match; the two cases are
	// deliberately indistinguishable.
	ErrHookNotFound = errors.New("no such webhook")
	// ErrInvalidURL is returned when the url param is not an absolute HTTP URL
	ErrInvalidURL = errors.New("invalid webhook url")
)

// Target addresses either every gem or a single hosted gem.
// The zero value is not valid; use GlobalTarget or GemTarget.
type Target struct {
	global bool
	gem    string
}

// GlobalTarget returns the target matching every gem
func GlobalTarget() Target {
	return Target{global: true}
}

// GemTarget returns the target for a single gem
func GemTarget(name string) Target {
	return Target{gem: name}
}

// IsGlobal reports whether the target matches every gem
func (t Target) IsGlobal() bool {
	return t.global
}

// GemName returns the gem name for a scoped target, or "" for global
func (t Target) GemName() string {
	return t.gem
}

// Key returns the stored form of the target: the gem name, or "*" for
// global. Storing the sentinel in a NOT NULL column keeps the uniqueness
// constraint effective for global hooks.
func (t Target) Key() string {
	if t.global {
		return GlobalPattern
	}
	return t.gem
}

// Display returns the user-facing form: the gem name, or "all gems"
func (t Target) Display() string {
	if t.global {
		return "all gems"
	}
	return t.gem
}

// TargetFromKey reconstructs a Target from its stored form
func TargetFromKey(key string) Target {
	if key == GlobalPattern {
		return GlobalTarget()
	}
	return GemTarget(key)
}

// Hook is a stored webhook registration. Ownership is immutable.
type Hook struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Target    Target    `json:"-"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the hook persistence interface. Implementations must enforce
// the (user, target, url) uniqueness atomically at the storage layer.
type Store interface {
	// Create persists a hook, filling ID and CreatedAt.
	// Returns ErrConflict if the (user, target, url) triple exists.
	Create(ctx context.Context, hook *Hook) error

	// ListByUser returns all hooks owned by userID in creation order.
	ListByUser(ctx context.Context, userID int64) ([]*Hook, error)

	// Delete removes the hook matching (userID, target, url) exactly and
	// returns it. Ownership is part of the lookup key: a hook owned by a
	// different user yields ErrHookNotFound, same as a missing hook.
	Delete(ctx context.Context, userID int64, target Target, url string) (*Hook, error)

	// ListByGem returns all hooks, across all owners, whose target is the
	// named gem or global. Used for publish fan-out.
	ListByGem(ctx context.Context, gemName string) ([]*Hook, error)

	// Get returns a hook by id, or ErrHookNotFound.
	Get(ctx context.Context, id int64) (*Hook, error)

	// Count returns the total number of stored hooks.
	Count(ctx context.Context) (int64, error)
}
