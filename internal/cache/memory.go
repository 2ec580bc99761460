package cache

import (
	"context"
	"time"

	"github.com/maypok86/otter/v2"
)

// DefaultSafetyWindow is subtracted from a token's expiry when deciding if
// it is still usable, so that a token handed to a caller does not expire
// in flight.
const DefaultSafetyWindow = 60 * time.Second

// minimumRetention keeps otter from being handed a non-positive expiry for
// tokens stored after their usable window has closed.
const minimumRetention = time.Second

// Memory is an in-memory cache implementation using otter. It is safe for
// concurrent use; each Get and Set is atomic for its key.
//
// Entries are evicted by otter once their usable window closes, so the
// cache does not grow with keys that are no longer requested.
type Memory struct {
	cache        *otter.Cache[string, Token]
	safetyWindow time.Duration
	now          func() time.Time
}

// MemoryOption configures a Memory cache.
type MemoryOption func(*Memory)

// WithClock sets the time source used to judge token usability.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates a new in-memory cache with the specified safety window
// and max size.
func NewMemory(safetyWindow time.Duration, maxSize int, opts ...MemoryOption) (*Memory, error) {
	m := &Memory{
		safetyWindow: safetyWindow,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	cache, err := otter.New(&otter.Options[string, Token]{
		MaximumSize: maxSize,
		ExpiryCalculator: otter.ExpiryWritingFunc(func(entry otter.Entry[string, Token]) time.Duration {
			return max(m.remaining(entry.Value), minimumRetention)
		}),
	})
	if err != nil {
		return nil, err
	}
	m.cache = cache

	return m, nil
}

// Get retrieves a token that is usable now.
// Returns the token, whether it was found, and any error.
func (m *Memory) Get(ctx context.Context, key string) (Token, bool, error) {
	entry, ok := m.cache.GetEntry(key)
	if !ok {
		return Token{}, false, nil
	}

	if m.remaining(entry.Value) <= 0 {
		return Token{}, false, nil
	}

	return entry.Value, true, nil
}

// Set stores a token in the cache, replacing any existing entry.
func (m *Memory) Set(ctx context.Context, key string, token Token) error {
	m.cache.Set(key, token)
	return nil
}

// Invalidate removes a token from the cache.
func (m *Memory) Invalidate(ctx context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Close is a no-op: the cache holds no external resources.
func (m *Memory) Close() error {
	return nil
}

// remaining is the time left before the token's usable window closes.
func (m *Memory) remaining(token Token) time.Duration {
	return token.ExpiresAt.Add(-m.safetyWindow).Sub(m.now())
}
