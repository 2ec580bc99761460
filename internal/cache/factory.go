package cache

import (
	"fmt"

	"github.com/chinmina/google-token-provider/internal/config"
	"github.com/rs/zerolog/log"
)

// NewFromConfig creates a cache implementation based on the provided configuration.
//
// The cache type must be either "memory" or "none". Any other value returns
// an error. Tokens are only ever held in process memory.
func NewFromConfig(cacheConfig config.CacheConfig, opts ...MemoryOption) (TokenCache, error) {
	switch cacheConfig.Type {
	case "memory":
		log.Info().
			Str("cache_type", "memory").
			Dur("safety_window", cacheConfig.SafetyWindow).
			Int("max_size", cacheConfig.MaxSize).
			Msg("initializing in-memory token cache")

		memory, err := NewMemory(cacheConfig.SafetyWindow, cacheConfig.MaxSize, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory cache: %w", err)
		}

		return NewInstrumented(memory, "memory"), nil

	case "none":
		log.Warn().
			Str("cache_type", "none").
			Msg("token cache disabled: every request performs a token exchange")

		return NewInstrumented(Disabled{}, "none"), nil

	default:
		return nil, fmt.Errorf("invalid cache type %q: must be either \"memory\" or \"none\"", cacheConfig.Type)
	}
}
