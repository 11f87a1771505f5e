package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashKey_Deterministic(t *testing.T) {
	h1 := HashKey("secret-key")
	h2 := HashKey("secret-key")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, HashKey("other-key"))
	assert.Len(t, h1, 64)
}

func TestGenerateKey(t *testing.T) {
	key, hash, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEmpty(t, key)
	assert.Equal(t, HashKey(key), hash)

	key2, _, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
}

func TestStaticKeyring(t *testing.T) {
	ctx := context.Background()
	keyring := NewStaticKeyring()
	keyring.Add("alice-key", &User{ID: 1, Handle: "alice"})

	t.Run("known key resolves", func(t *testing.T) {
		user, err := keyring.UserForKey(ctx, "alice-key")
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		user, err := keyring.UserForKey(ctx, "bogus")
		assert.ErrorIs(t, err, ErrInvalidKey)
		assert.Nil(t, user)
	})
}
