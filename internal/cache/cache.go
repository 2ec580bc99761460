package cache

import (
	"context"
	"time"
)

// Token is a cached access token. Tokens are stored and returned by value:
// no caller holds a reference to a cache entry.
type Token struct {
	AccessToken string
	ExpiresAt   time.Time
}

// TokenCache defines the interface for token caching implementations.
type TokenCache interface {
	// Get retrieves a token that is still usable. Absent and expired
	// entries are both reported as not found.
	Get(ctx context.Context, key string) (Token, bool, error)

	// Set stores a token, replacing any existing entry for the key.
	Set(ctx context.Context, key string, token Token) error

	// Invalidate removes a token from the cache.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
