// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gemyard/gemyard/pkg/auth"
	"github.com/gemyard/gemyard/pkg/contextkeys"
)

// APIKeyMiddleware authenticates requests using the Authorization header.
// The header carries the raw API key; an optional "Bearer " prefix is
// accepted for clients that insist on it.
type APIKeyMiddleware struct {
	keyring auth.Keyring
}

// NewAPIKeyMiddleware creates a new authentication middleware
func NewAPIKeyMiddleware(keyring auth.Keyring) *APIKeyMiddleware {
	return &APIKeyMiddleware{keyring: keyring}
}

// Handler wraps an HTTP handler with authentication
func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Authorization")
		if key == "" {
			unauthorizedResponse(w)
			return
		}
		key = strings.TrimPrefix(key, "Bearer ")

		user, err := m.keyring.UserForKey(r.Context(), key)
		if err != nil {
			unauthorizedResponse(w)
			return
		}

		ctx := contextkeys.WithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorizedResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte("Access Denied. Please sign up for an account."))
}

// CurrentUser extracts the authenticated user from a request, or nil
func CurrentUser(r *http.Request) *auth.User {
	user, ok := contextkeys.User(r.Context()).(*auth.User)
	if !ok {
		return nil
	}
	return user
}
