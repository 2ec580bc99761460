package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/chinmina/google-token-provider/internal/credential"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Cache       CacheConfig
	Credentials CredentialConfig
	HTTP        HTTPConfig
	Observe     ObserveConfig
	Token       TokenConfig
}

// TokenConfig describes the token to request and how to present it.
type TokenConfig struct {
	// Endpoint is the token exchange URL. Internal only: overridden in tests.
	Endpoint string `env:"TOKEN_ENDPOINT, default=https://oauth2.googleapis.com/token"`

	Scopes []string `env:"TOKEN_SCOPES"`

	// Subject is the user to impersonate. When empty, SubjectFields are
	// consulted in order.
	Subject        string   `env:"TOKEN_SUBJECT"`
	SubjectFields  []string `env:"TOKEN_SUBJECT_FIELDS, default=GOOGLE_DELEGATED_SUBJECT"`
	RequireSubject bool     `env:"TOKEN_REQUIRE_SUBJECT, default=false"`

	// FallbackFields name values holding a pre-obtained access token, used
	// when no service account is configured.
	FallbackFields []string `env:"TOKEN_FALLBACK_FIELDS, default=GOOGLE_ACCESS_TOKEN"`

	// ExchangeTimeout bounds a single token exchange request. Zero disables
	// the timeout.
	ExchangeTimeout time.Duration `env:"TOKEN_EXCHANGE_TIMEOUT, default=30s"`

	// Output selects how the token is written: "token", "header" or "json".
	Output string `env:"TOKEN_OUTPUT, default=token"`
}

// CredentialConfig names the values holding service account credentials.
type CredentialConfig struct {
	EmailField    string   `env:"CREDENTIAL_EMAIL_FIELD, default=GOOGLE_SERVICE_ACCOUNT_EMAIL"`
	KeyField      string   `env:"CREDENTIAL_KEY_FIELD, default=GOOGLE_PRIVATE_KEY"`
	KeyPartFields []string `env:"CREDENTIAL_KEY_PART_FIELDS, default=GOOGLE_PRIVATE_KEY_PART1,GOOGLE_PRIVATE_KEY_PART2"`
	KeyARNField   string   `env:"CREDENTIAL_KEY_ARN_FIELD, default=GOOGLE_PRIVATE_KEY_ARN"`

	// ValuesFile is a YAML document of credential values. Values present in
	// the process environment take precedence.
	ValuesFile string `env:"CONFIG_VALUES_FILE"`
}

// Fields converts the configured names to loader fields.
func (c CredentialConfig) Fields() credential.Fields {
	fields := credential.Fields{
		Email:         c.EmailField,
		PrivateKey:    c.KeyField,
		PrivateKeyARN: c.KeyARNField,
	}
	copy(fields.PrivateKeyParts[:], c.KeyPartFields)

	return fields
}

// CacheConfig specifies cache configuration.
type CacheConfig struct {
	// Type selects the cache implementation: "memory" (default) or "none".
	Type string `env:"TOKEN_CACHE_TYPE, default=memory"`

	// SafetyWindow is subtracted from token expiry when judging whether a
	// cached token may still be returned.
	SafetyWindow time.Duration `env:"TOKEN_CACHE_SAFETY_WINDOW, default=60s"`

	// MaxSize bounds the number of cached tokens.
	MaxSize int `env:"TOKEN_CACHE_MAX_SIZE, default=10000"`
}

// HTTPConfig tunes the outgoing HTTP transport.
type HTTPConfig struct {
	OutgoingMaxIdleConns    int `env:"OUTGOING_HTTP_MAX_IDLE_CONNS, default=100"`
	OutgoingMaxConnsPerHost int `env:"OUTGOING_HTTP_MAX_CONNS_PER_HOST, default=20"`
}

type ObserveConfig struct {
	SDKLogLevel                string `env:"OBSERVE_OTEL_LOG_LEVEL, default=info"`
	Enabled                    bool   `env:"OBSERVE_ENABLED, default=false"`
	MetricsEnabled             bool   `env:"OBSERVE_METRICS_ENABLED, default=true"`
	Type                       string `env:"OBSERVE_TYPE, default=grpc"`
	ServiceName                string `env:"OBSERVE_SERVICE_NAME, default=google-token-provider"`
	TraceBatchTimeoutSeconds   int    `env:"OBSERVE_TRACE_BATCH_TIMEOUT_SECS, default=20"`
	MetricReadIntervalSeconds  int    `env:"OBSERVE_METRIC_READ_INTERVAL_SECS, default=60"`
	HTTPTransportEnabled       bool   `env:"OBSERVE_HTTP_TRANSPORT_ENABLED, default=true"`
	HTTPConnectionTraceEnabled bool   `env:"OBSERVE_CONNECTION_TRACE_ENABLED, default=true"`
}

func Load(ctx context.Context) (Config, error) {
	return load(ctx, nil) // load from OS environment
}

func load(ctx context.Context, lookup envconfig.Lookuper) (Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookup, // nil defaults to OS environment
	})
	if err != nil {
		return cfg, err
	}

	if err := cfg.Cache.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid cache configuration: %w", err)
	}

	if err := cfg.Token.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid token configuration: %w", err)
	}

	if err := cfg.Observe.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid observe configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the cache configuration is valid.
func (c *CacheConfig) Validate() error {
	if c.Type != "memory" && c.Type != "none" {
		return fmt.Errorf("TOKEN_CACHE_TYPE must be \"memory\" or \"none\", got %q", c.Type)
	}

	if c.SafetyWindow < 0 {
		return fmt.Errorf("TOKEN_CACHE_SAFETY_WINDOW must not be negative")
	}

	if c.Type == "memory" && c.MaxSize <= 0 {
		return fmt.Errorf("TOKEN_CACHE_MAX_SIZE must be positive")
	}

	return nil
}

var outputs = []string{"token", "header", "json"}

// Validate checks that the token configuration is valid.
func (c *TokenConfig) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("TOKEN_ENDPOINT must not be empty")
	}

	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("TOKEN_OUTPUT must be one of %v, got %q", outputs, c.Output)
	}

	if c.ExchangeTimeout < 0 {
		return fmt.Errorf("TOKEN_EXCHANGE_TIMEOUT must not be negative")
	}

	return nil
}

// Validate checks that the telemetry exporter type is known.
func (c *ObserveConfig) Validate() error {
	if c.Enabled && c.Type != "grpc" && c.Type != "stdout" {
		return fmt.Errorf("OBSERVE_TYPE must be \"grpc\" or \"stdout\", got %q", c.Type)
	}
	return nil
}
