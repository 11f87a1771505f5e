package webhooks

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemyard/gemyard/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestRegistry() *Registry {
	return NewRegistry(NewMemoryStore(), testLogger(), nil)
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"http://example.com/hook",
		"https://example.com/hook?token=abc",
		"https://example.com:8443/hook",
	}
	for _, raw := range valid {
		assert.NoError(t, ValidateURL(raw), raw)
	}

	invalid := []string{
		"",
		"example.com/hook",
		"/relative/path",
		"ftp://example.com/hook",
		"https://",
	}
	for _, raw := range invalid {
		assert.ErrorIs(t, ValidateURL(raw), ErrInvalidURL, raw)
	}
}

func TestRegistry_Create(t *testing.T) {
	registry := newTestRegistry()

	hook, err := registry.Create(context.Background(), 1, GemTarget("rails"), "https://example.com/hook")
	require.NoError(t, err)
	assert.NotZero(t, hook.ID)
}

func TestRegistry_Create_InvalidURL(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Create(context.Background(), 1, GemTarget("rails"), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestRegistry_Create_Duplicate(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	_, err := registry.Create(ctx, 1, GemTarget("rails"), "https://example.com/hook")
	require.NoError(t, err)

	_, err = registry.Create(ctx, 1, GemTarget("rails"), "https://example.com/hook")
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegistry_Create_SameURLDifferentScopes(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	_, err := registry.Create(ctx, 1, GemTarget("rails"), "https://example.com/hook")
	require.NoError(t, err)

	// A global hook is a distinct registration even with an identical URL.
	_, err = registry.Create(ctx, 1, GlobalTarget(), "https://example.com/hook")
	assert.NoError(t, err)

	// So is the same triple under another owner.
	_, err = registry.Create(ctx, 2, GemTarget("rails"), "https://example.com/hook")
	assert.NoError(t, err)
}

func TestRegistry_Remove(t *testing.T) {
	store := NewMemoryStore()
	registry := NewRegistry(store, testLogger(), nil)
	ctx := context.Background()

	created, err := registry.Create(ctx, 1, GlobalTarget(), "https://example.com/hook")
	require.NoError(t, err)

	removed, err := registry.Remove(ctx, 1, GlobalTarget(), "https://example.com/hook")
	require.NoError(t, err)
	assert.Equal(t, created.ID, removed.ID)

	_, err = store.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrHookNotFound)
}

func TestRegistry_Remove_WrongOwner(t *testing.T) {
	store := NewMemoryStore()
	registry := NewRegistry(store, testLogger(), nil)
	ctx := context.Background()

	created, err := registry.Create(ctx, 1, GemTarget("rails"), "https://example.com/hook")
	require.NoError(t, err)

	_, err = registry.Remove(ctx, 2, GemTarget("rails"), "https://example.com/hook")
	assert.ErrorIs(t, err, ErrHookNotFound)

	_, err = store.Get(ctx, created.ID)
	assert.NoError(t, err)
}

func TestRegistry_List(t *testing.T) {
	registry := newTestRegistry()
	ctx := context.Background()

	_, err := registry.Create(ctx, 1, GemTarget("rails"), "https://a.example.com")
	require.NoError(t, err)
	_, err = registry.Create(ctx, 1, GlobalTarget(), "https://b.example.com")
	require.NoError(t, err)
	_, err = registry.Create(ctx, 2, GemTarget("rails"), "https://c.example.com")
	require.NoError(t, err)

	hooks, err := registry.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	assert.Equal(t, "https://a.example.com", hooks[0].URL)
	assert.Equal(t, "https://b.example.com", hooks[1].URL)
}
