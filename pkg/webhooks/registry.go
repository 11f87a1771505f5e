package webhooks

import (
	"context"
	"net/url"

	"github.com/gemyard/gemyard/pkg/observability"
)

// Registry provides owner-scoped CRUD over hooks
type Registry struct {
	store   Store
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a registry. Metrics may be nil.
func NewRegistry(store Store, logger *observability.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{store: store, logger: logger, metrics: metrics}
}

func scopeLabel(target Target) string {
	if target.IsGlobal() {
		return "global"
	}
	return "gem"
}

// ValidateURL checks that raw is a well-formed absolute HTTP(S) URL
func ValidateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// Create registers a hook for (userID, target, hookURL). Uniqueness of the
// triple is enforced by the store, not checked here, so concurrent creates
// cannot both succeed.
func (r *Registry) Create(ctx context.Context, userID int64, target Target, hookURL string) (*Hook, error) {
	if err := ValidateURL(hookURL); err != nil {
		return nil, err
	}

	hook := &Hook{UserID: userID, Target: target, URL: hookURL}
	if err := r.store.Create(ctx, hook); err != nil {
		if err == ErrConflict && r.metrics != nil {
			r.metrics.HookConflictsTotal.Inc()
		}
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.HooksCreatedTotal.WithLabelValues(scopeLabel(target)).Inc()
	}
	r.logger.WithFields(map[string]interface{}{
		"hook_id": hook.ID,
		"user_id": userID,
		"target":  target.Key(),
		"url":     hookURL,
	}).Info("webhook created")

	return hook, nil
}

// List returns all hooks owned by userID in creation order
func (r *Registry) List(ctx context.Context, userID int64) ([]*Hook, error) {
	return r.store.ListByUser(ctx, userID)
}

// Remove deletes the hook matching (userID, target, hookURL) exactly.
// The store treats ownership as part of the lookup key, so removing
// another user's hook reports ErrHookNotFound without revealing that the
// hook exists.
func (r *Registry) Remove(ctx context.Context, userID int64, target Target, hookURL string) (*Hook, error) {
	hook, err := r.store.Delete(ctx, userID, target, hookURL)
	if err != nil {
		return nil, err
	}

	if r.metrics != nil {
		r.metrics.HooksRemovedTotal.WithLabelValues(scopeLabel(target)).Inc()
	}
	r.logger.WithFields(map[string]interface{}{
		"hook_id": hook.ID,
		"user_id": userID,
		"target":  target.Key(),
	}).Info("webhook removed")

	return hook, nil
}
