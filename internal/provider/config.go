package provider

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/chinmina/google-token-provider/internal/cache"
	"github.com/chinmina/google-token-provider/internal/config"
	"github.com/chinmina/google-token-provider/internal/exchange"
)

// NewFromConfig creates a Provider from process configuration. Options are
// applied after the configured ones.
func NewFromConfig(cfg config.Config, opts ...Option) (*Provider, error) {
	tokenCache, err := cache.NewFromConfig(cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("token cache configuration failed: %w", err)
	}

	// the transport is resolved per request so that instrumentation
	// installed on http.DefaultTransport after startup is used
	exchanger := exchange.New(
		cfg.Token.Endpoint,
		exchange.WithHTTPClient(&http.Client{Timeout: cfg.Token.ExchangeTimeout}),
	)

	configured := []Option{
		WithCache(tokenCache),
		WithExchangeClient(exchanger),
		WithFields(cfg.Credentials.Fields()),
	}

	return New(append(configured, opts...)...)
}

// RequestFromConfig returns the token request described by configuration.
func RequestFromConfig(cfg config.TokenConfig) Request {
	return Request{
		Scopes:              cfg.Scopes,
		Subject:             cfg.Subject,
		SubjectFields:       cfg.SubjectFields,
		FallbackTokenFields: cfg.FallbackFields,
		RequireSubject:      cfg.RequireSubject,
	}
}

var defaultProvider = sync.OnceValues(func() (*Provider, error) {
	cfg, err := config.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("configuration load failed: %w", err)
	}
	return NewFromConfig(cfg)
})

// Default returns the process-wide Provider, configured from the
// environment on first use. All callers share its token cache.
func Default() (*Provider, error) {
	return defaultProvider()
}
