package webhooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Create(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hook := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, hook))
	assert.NotZero(t, hook.ID)
	assert.False(t, hook.CreatedAt.IsZero())
}

func TestMemoryStore_Create_Conflict(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, first))

	dup := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	assert.ErrorIs(t, store.Create(ctx, dup), ErrConflict)
}

func TestMemoryStore_Create_GlobalAndScopedSameURL(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	scoped := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, scoped))

	global := &Hook{UserID: 1, Target: GlobalTarget(), URL: "https://example.com/hook"}
	assert.NoError(t, store.Create(ctx, global))
}

func TestMemoryStore_ListByUser_CreationOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	urls := []string{"https://a.example.com", "https://b.example.com", "https://c.example.com"}
	for _, url := range urls {
		require.NoError(t, store.Create(ctx, &Hook{UserID: 7, Target: GemTarget("rack"), URL: url}))
	}
	require.NoError(t, store.Create(ctx, &Hook{UserID: 8, Target: GemTarget("rack"), URL: urls[0]}))

	hooks, err := store.ListByUser(ctx, 7)
	require.NoError(t, err)
	require.Len(t, hooks, 3)
	for i, hook := range hooks {
		assert.Equal(t, urls[i], hook.URL)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hook := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, hook))

	removed, err := store.Delete(ctx, 1, GemTarget("rails"), "https://example.com/hook")
	require.NoError(t, err)
	assert.Equal(t, hook.ID, removed.ID)

	_, err = store.Get(ctx, hook.ID)
	assert.ErrorIs(t, err, ErrHookNotFound)
}

func TestMemoryStore_Delete_WrongOwner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hook := &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, hook))

	_, err := store.Delete(ctx, 2, GemTarget("rails"), "https://example.com/hook")
	assert.ErrorIs(t, err, ErrHookNotFound)

	// The hook must survive the failed cross-owner delete.
	kept, err := store.Get(ctx, hook.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), kept.UserID)
}

func TestMemoryStore_Delete_WrongOwnerGlobal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	hook := &Hook{UserID: 1, Target: GlobalTarget(), URL: "https://example.com/hook"}
	require.NoError(t, store.Create(ctx, hook))

	_, err := store.Delete(ctx, 2, GlobalTarget(), "https://example.com/hook")
	assert.ErrorIs(t, err, ErrHookNotFound)

	kept, err := store.Get(ctx, hook.ID)
	require.NoError(t, err)
	assert.True(t, kept.Target.IsGlobal())
	assert.Equal(t, int64(1), kept.UserID)
}

func TestMemoryStore_ListByGem_IncludesGlobal(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &Hook{UserID: 1, Target: GemTarget("rails"), URL: "https://rails.example.com"}))
	require.NoError(t, store.Create(ctx, &Hook{UserID: 2, Target: GlobalTarget(), URL: "https://global.example.com"}))
	require.NoError(t, store.Create(ctx, &Hook{UserID: 3, Target: GemTarget("rack"), URL: "https://rack.example.com"}))

	hooks, err := store.ListByGem(ctx, "rails")
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	assert.Equal(t, "https://rails.example.com", hooks[0].URL)
	assert.Equal(t, "https://global.example.com", hooks[1].URL)
}

func TestMemoryStore_Count(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, store.Create(ctx, &Hook{UserID: 1, Target: GlobalTarget(), URL: "https://example.com"}))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
