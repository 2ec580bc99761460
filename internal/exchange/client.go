package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// GrantType is the OAuth2 JWT-bearer grant (RFC 7523).
const GrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// DefaultExpiresIn is used when the endpoint omits expires_in: the nominal
// lifetime of a JWT-bearer access token.
const DefaultExpiresIn = 3600 * time.Second

const (
	maxResponseBytes  = 1 << 20 // 1 MB
	maxDescriptionLen = 512
)

// Client exchanges signed assertions for access tokens. It performs no
// retries and imposes no timeout beyond that of the HTTP client it uses.
type Client struct {
	endpoint   string
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the exchange. The default is
// http.DefaultClient.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithClock sets the time source used to compute token expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a client for the given token endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: http.DefaultClient,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint is the token endpoint URL. Assertions must name it as their
// audience.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Exchange posts the signed assertion to the token endpoint. All failures
// are returned as a TokenExchangeError. The token expiry is measured from
// the time the response was received.
func (c *Client) Exchange(ctx context.Context, assertion string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", GrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, TokenExchangeError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, TokenExchangeError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	received := c.now()
	if err != nil {
		return nil, TokenExchangeError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Err:        fmt.Errorf("read response: %w", err),
		}
	}

	// The body is parsed regardless of status: error responses carry the
	// diagnostic fields.
	var parsed tokenResponse
	parseErr := json.Unmarshal(body, &parsed)

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if !ok || parsed.AccessToken == "" {
		exchangeErr := TokenExchangeError{
			StatusCode:  resp.StatusCode,
			Status:      resp.Status,
			Description: describe(parsed, body),
		}
		if ok {
			exchangeErr.Err = errors.New("response contains no access token")
			if parseErr != nil {
				exchangeErr.Err = fmt.Errorf("response is not a token: %w", parseErr)
			}
		}

		log.Ctx(ctx).Debug().
			Int("status", resp.StatusCode).
			Str("error", parsed.Error).
			Msg("token exchange rejected")

		return nil, exchangeErr
	}

	expiresIn := DefaultExpiresIn
	if parsed.ExpiresIn > 0 {
		expiresIn = time.Duration(parsed.ExpiresIn) * time.Second
	}

	tokenType := parsed.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &oauth2.Token{
		AccessToken: parsed.AccessToken,
		TokenType:   tokenType,
		Expiry:      received.Add(expiresIn),
	}, nil
}

// describe selects the most specific diagnostic available in an error
// response.
func describe(parsed tokenResponse, body []byte) string {
	switch {
	case parsed.ErrorDescription != "" && parsed.Error != "":
		return parsed.Error + ": " + parsed.ErrorDescription
	case parsed.ErrorDescription != "":
		return parsed.ErrorDescription
	case parsed.Error != "":
		return parsed.Error
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > maxDescriptionLen {
		raw = raw[:maxDescriptionLen] + "..."
	}
	return raw
}
