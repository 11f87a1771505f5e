package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/gemyard/gemyard/pkg/gems"
)

// Resolver turns a caller-supplied gem_name into a Target. The same
// resolution runs ahead of create, remove, and fire, so an unknown gem
// fails identically across all three before any ownership or delivery
// logic is reached.
type Resolver struct {
	catalog gems.Store
}

// NewResolver creates a resolver backed by the gem catalog
func NewResolver(catalog gems.Store) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve maps an identifier to a Target. The reserved "*" pattern
// resolves to the global target; anything else must name a hosted gem
// exactly (case-sensitive) or the result is ErrTargetNotFound.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (Target, error) {
	if identifier == GlobalPattern {
		return GlobalTarget(), nil
	}

	gem, err := r.catalog.GetGem(ctx, identifier)
	if err != nil {
		if errors.Is(err, gems.ErrNotFound) {
			return Target{}, ErrTargetNotFound
		}
		return Target{}, fmt.Errorf("failed to resolve target: %w", err)
	}
	return GemTarget(gem.Name), nil
}
