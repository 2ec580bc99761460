package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/chinmina/google-token-provider/internal/assertion"
	"github.com/chinmina/google-token-provider/internal/audit"
	"github.com/chinmina/google-token-provider/internal/cache"
	"github.com/chinmina/google-token-provider/internal/credential"
	"github.com/chinmina/google-token-provider/internal/exchange"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultExchangeTimeout = 30 * time.Second
	DefaultCacheSize       = 10_000
)

var tracer = otel.Tracer("github.com/chinmina/google-token-provider/internal/provider")

// Request describes the token a caller needs.
type Request struct {
	Scopes []string

	// Subject is the user to impersonate. When blank, SubjectFields are
	// consulted in order; a blank value is treated as absent.
	Subject       string
	SubjectFields []string

	// FallbackTokenFields name values holding a pre-obtained access token,
	// returned verbatim when no service account is configured.
	FallbackTokenFields []string

	// RequireSubject fails the request before any network call when no
	// subject resolves.
	RequireSubject bool
}

// Provider issues access tokens for a service account, caching them until
// shortly before they expire. Concurrent requests for the same token share a
// single exchange. A Provider is safe for concurrent use.
type Provider struct {
	cache     cache.TokenCache
	exchanger *exchange.Client
	fields    credential.Fields
	now       func() time.Time
	kmsClient func(context.Context) (assertion.KMSClient, error)

	flights singleflight.Group
}

type Option func(*Provider)

// WithCache sets the token cache. The default is an instrumented in-memory
// cache with the default safety window.
func WithCache(c cache.TokenCache) Option {
	return func(p *Provider) {
		p.cache = c
	}
}

// WithExchangeClient sets the client used to exchange assertions. The
// default targets Google's token endpoint with a 30 second timeout.
func WithExchangeClient(c *exchange.Client) Option {
	return func(p *Provider) {
		p.exchanger = c
	}
}

// WithFields sets the names of the credential values.
func WithFields(fields credential.Fields) Option {
	return func(p *Provider) {
		p.fields = fields
	}
}

// WithKMSClient sets the client used for keys held in AWS KMS. By default a
// client is created from the ambient AWS configuration on first use.
func WithKMSClient(client assertion.KMSClient) Option {
	return func(p *Provider) {
		p.kmsClient = func(context.Context) (assertion.KMSClient, error) {
			return client, nil
		}
	}
}

// WithClock sets the time source for assertion timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func New(opts ...Option) (*Provider, error) {
	p := &Provider{
		fields:    credential.DefaultFields(),
		now:       time.Now,
		kmsClient: ambientKMSClient(),
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.cache == nil {
		memory, err := cache.NewMemory(cache.DefaultSafetyWindow, DefaultCacheSize)
		if err != nil {
			return nil, fmt.Errorf("token cache configuration failed: %w", err)
		}
		p.cache = cache.NewInstrumented(memory, "memory")
	}

	if p.exchanger == nil {
		p.exchanger = exchange.New(
			assertion.DefaultAudience,
			exchange.WithHTTPClient(&http.Client{Timeout: DefaultExchangeTimeout}),
		)
	}

	return p, nil
}

// Close releases the token cache.
func (p *Provider) Close() error {
	return p.cache.Close()
}

// AccessToken returns a bearer token for the service account configured in
// values. Errors are credential.ConfigurationError, assertion.CryptoError or
// exchange.TokenExchangeError, or the context error when ctx ends first.
func (p *Provider) AccessToken(ctx context.Context, values envconfig.Lookuper, req Request) (string, error) {
	token, err := p.Token(ctx, values, req)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// Token is AccessToken, returning the token with its expiry. A fallback
// token has no expiry.
func (p *Provider) Token(ctx context.Context, values envconfig.Lookuper, req Request) (*oauth2.Token, error) {
	ctx, span := tracer.Start(ctx, "access_token")
	defer span.End()

	ctx, entry := audit.Begin(ctx)
	defer entry.End(ctx)()

	token, source, err := p.token(ctx, values, req, entry)
	if err != nil {
		entry.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "access token unavailable")
		return nil, err
	}

	entry.Source = source
	entry.ExpiresAt = token.Expiry
	span.SetAttributes(attribute.String("token.source", source))

	return token, nil
}

type flightResult struct {
	token  oauth2.Token
	source string
}

func (p *Provider) token(ctx context.Context, values envconfig.Lookuper, req Request, entry *audit.Entry) (*oauth2.Token, string, error) {
	id, err := credential.Load(values, p.fields)
	if err != nil {
		if fallback := credential.FirstValue(values, req.FallbackTokenFields); fallback != "" {
			log.Ctx(ctx).Debug().Err(err).Msg("service account not configured, using fallback token")
			return &oauth2.Token{AccessToken: fallback, TokenType: "Bearer"}, audit.SourceFallback, nil
		}
		return nil, "", err
	}

	entry.ServiceAccount = id.Email
	entry.KeySource = id.KeySource()
	entry.KeyFingerprint = id.Fingerprint()

	subject := resolveSubject(values, req)
	if req.RequireSubject && subject == "" {
		return nil, "", credential.ConfigurationError{
			Field:  strings.Join(req.SubjectFields, ","),
			Reason: "delegated subject required but not configured",
		}
	}

	scopes := assertion.CanonicalScopes(req.Scopes)
	entry.Subject = subject
	entry.Scopes = scopes

	key := cache.Key(id.Email, subject, scopes)

	if token, ok := p.cached(ctx, key); ok {
		return token, audit.SourceCache, nil
	}

	// The shared exchange is detached from the cancellation of whichever
	// caller started it: the HTTP client timeout bounds it instead.
	flightCtx := context.WithoutCancel(ctx)
	results := p.flights.DoChan(key, func() (any, error) {
		if token, ok := p.cached(flightCtx, key); ok {
			return flightResult{*token, audit.SourceCache}, nil
		}

		token, err := p.exchange(flightCtx, id, subject, scopes)
		if err != nil {
			return nil, err
		}

		if err := p.cache.Set(flightCtx, key, cache.Token{AccessToken: token.AccessToken, ExpiresAt: token.Expiry}); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msg("token cache store failed, continuing")
		}

		return flightResult{*token, audit.SourceExchange}, nil
	})

	select {
	case <-ctx.Done():
		return nil, "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, "", res.Err
		}
		r := res.Val.(flightResult)
		token := r.token
		return &token, r.source, nil
	}
}

func (p *Provider) cached(ctx context.Context, key string) (*oauth2.Token, bool) {
	hit, found, err := p.cache.Get(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("token cache lookup failed, treating as miss")
		return nil, false
	}
	if !found {
		return nil, false
	}

	return &oauth2.Token{
		AccessToken: hit.AccessToken,
		TokenType:   "Bearer",
		Expiry:      hit.ExpiresAt,
	}, true
}

// exchange builds, signs and exchanges a fresh assertion.
func (p *Provider) exchange(ctx context.Context, id credential.Identity, subject string, scopes []string) (*oauth2.Token, error) {
	var kmsClient assertion.KMSClient
	if id.KeySource() == "kms" {
		client, err := p.kmsClient(ctx)
		if err != nil {
			return nil, assertion.CryptoError{Op: "kms", Err: err}
		}
		kmsClient = client
	}

	signer, err := assertion.NewSigner(id, kmsClient)
	if err != nil {
		return nil, err
	}

	unsigned, err := assertion.Build(assertion.Params{
		Issuer:   id.Email,
		Subject:  subject,
		Scopes:   scopes,
		Audience: p.exchanger.Endpoint(),
		Now:      p.now(),
	})
	if err != nil {
		return nil, assertion.CryptoError{Op: "build", Err: err}
	}

	signed, err := assertion.Sign(ctx, signer, unsigned)
	if err != nil {
		return nil, err
	}

	return p.exchanger.Exchange(ctx, signed)
}

func resolveSubject(values envconfig.Lookuper, req Request) string {
	if subject := strings.TrimSpace(req.Subject); subject != "" {
		return subject
	}
	return credential.FirstValue(values, req.SubjectFields)
}

// ambientKMSClient creates a KMS client from the default AWS configuration
// on first use. Failures are not remembered.
func ambientKMSClient() func(context.Context) (assertion.KMSClient, error) {
	var (
		mu     sync.Mutex
		client assertion.KMSClient
	)

	return func(ctx context.Context) (assertion.KMSClient, error) {
		mu.Lock()
		defer mu.Unlock()

		if client != nil {
			return client, nil
		}

		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}

		client = kms.NewFromConfig(cfg)
		return client, nil
	}
}
