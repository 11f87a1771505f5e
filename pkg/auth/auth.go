// Package auth provides API-key based caller identity.
//
// Keys are opaque strings issued out of band; only their SHA256 hash is
// stored. A Keyring resolves a presented key to the owning user.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidKey is returned when no user owns the presented API key
var ErrInvalidKey = errors.New("invalid api key")

// User is an authenticated account
type User struct {
	ID        int64     `json:"id"`
	Handle    string    `json:"handle"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Keyring resolves an API key to its owning user
type Keyring interface {
	UserForKey(ctx context.Context, key string) (*User, error)
}

// HashKey computes the SHA256 hash of an API key for storage and lookup
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// GenerateKey creates a new random API key and its storage hash
func GenerateKey() (key string, keyHash string, err error) {
	randomBytes := make([]byte, 24)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	key = base64.RawURLEncoding.EncodeToString(randomBytes)
	return key, HashKey(key), nil
}

// StaticKeyring is an in-memory Keyring for development and tests
type StaticKeyring struct {
	users map[string]*User // key hash -> user
}

// NewStaticKeyring creates a keyring from raw key -> user pairs
func NewStaticKeyring() *StaticKeyring {
	return &StaticKeyring{users: make(map[string]*User)}
}

// Add registers a raw API key for a user
func (k *StaticKeyring) Add(key string, user *User) {
	k.users[HashKey(key)] = user
}

// UserForKey implements Keyring
func (k *StaticKeyring) UserForKey(_ context.Context, key string) (*User, error) {
	user, ok := k.users[HashKey(key)]
	if !ok {
		return nil, ErrInvalidKey
	}
	return user, nil
}
