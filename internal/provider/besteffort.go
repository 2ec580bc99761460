package provider

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

// BestEffort returns an access token, or "" when one cannot be obtained.
// Failures are logged rather than returned, for callers where the token is
// optional.
func (p *Provider) BestEffort(ctx context.Context, values envconfig.Lookuper, req Request) string {
	token, err := p.AccessToken(ctx, values, req)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("access token unavailable, continuing without")
		return ""
	}
	return token
}

// TokenSource adapts the provider to oauth2.TokenSource for use with client
// libraries. Each call to Token consults the provider cache.
func (p *Provider) TokenSource(ctx context.Context, values envconfig.Lookuper, req Request) oauth2.TokenSource {
	return &tokenSource{
		ctx:      ctx,
		provider: p,
		values:   values,
		req:      req,
	}
}

type tokenSource struct {
	ctx      context.Context
	provider *Provider
	values   envconfig.Lookuper
	req      Request
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx, s.values, s.req)
}
