package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/chinmina/google-token-provider/internal/assertion"
	"github.com/chinmina/google-token-provider/internal/config"
	"github.com/chinmina/google-token-provider/internal/credential"
	"github.com/chinmina/google-token-provider/internal/lifecycle"
	"github.com/chinmina/google-token-provider/internal/observe"
	"github.com/chinmina/google-token-provider/internal/provider"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	exitFailure       = 1
	exitConfiguration = 2
)

func main() {
	configureLogging()

	logBuildInfo()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout)
	stop()

	if err != nil {
		log.Error().Err(err).Msg("access token request failed")
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, out io.Writer) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}

	var hooks lifecycle.Hooks
	defer func() {
		// cleanup must complete even when ctx was cancelled
		_ = hooks.Run(context.WithoutCancel(ctx))
	}()

	// configure telemetry, including wrapping default HTTP client
	shutdownTelemetry, err := observe.Configure(ctx, cfg.Observe)
	if err != nil {
		return fmt.Errorf("telemetry bootstrap failed: %w", err)
	}
	hooks.AddContext("telemetry", shutdownTelemetry)

	http.DefaultTransport = observe.HTTPTransport(
		configureHTTPTransport(cfg.HTTP),
		cfg.Observe,
	)
	http.DefaultClient = &http.Client{
		Transport: http.DefaultTransport,
	}

	values, err := config.Values(nil, cfg.Credentials.ValuesFile)
	if err != nil {
		return fmt.Errorf("credential values unavailable: %w", err)
	}

	p, err := provider.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("provider configuration failed: %w", err)
	}
	hooks.AddClose("token cache", p)

	token, err := p.Token(ctx, values, provider.RequestFromConfig(cfg.Token))
	if err != nil {
		return err
	}

	return writeToken(out, cfg.Token.Output, token)
}

// writeToken prints the token in the requested output format.
func writeToken(out io.Writer, format string, token *oauth2.Token) error {
	var err error
	switch format {
	case "header":
		_, err = fmt.Fprintf(out, "Authorization: %s %s\n", token.Type(), token.AccessToken)
	case "json":
		err = json.NewEncoder(out).Encode(token)
	default:
		_, err = fmt.Fprintln(out, token.AccessToken)
	}
	return err
}

// exitCode distinguishes setup defects, which will not succeed on retry,
// from other failures.
func exitCode(err error) int {
	var (
		cfgErr    credential.ConfigurationError
		cryptoErr assertion.CryptoError
	)
	if errors.As(err, &cfgErr) || errors.As(err, &cryptoErr) {
		return exitConfiguration
	}
	return exitFailure
}

func configureLogging() {
	// Set global level to the minimum: allows the Open Telemetry logging to be
	// configured separately.
	zerolog.SetGlobalLevel(zerolog.Level(-128))

	// stdout carries the token, so logs go to stderr
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	if os.Getenv("ENV") == "development" {
		log.Logger = log.
			Output(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel)
	}

	zerolog.DefaultContextLogger = &log.Logger
}

func logBuildInfo() {
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	ev := log.Debug()
	for _, v := range buildInfo.Settings {
		if strings.HasPrefix(v.Key, "vcs.") ||
			strings.HasPrefix(v.Key, "GO") ||
			v.Key == "CGO_ENABLED" {
			ev = ev.Str(v.Key, v.Value)
		}
	}

	ev.Msg("build information")
}

func configureHTTPTransport(cfg config.HTTPConfig) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	transport.MaxIdleConns = cfg.OutgoingMaxIdleConns
	transport.MaxConnsPerHost = cfg.OutgoingMaxConnsPerHost

	return transport
}
