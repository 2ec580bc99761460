package observe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chinmina/google-token-provider/internal/config"
	"github.com/chinmina/google-token-provider/internal/observe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_Disabled(t *testing.T) {
	shutdown, err := observe.Configure(context.Background(), config.ObserveConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestConfigure_Stdout(t *testing.T) {
	shutdown, err := observe.Configure(context.Background(), config.ObserveConfig{
		Enabled:                   true,
		Type:                      "stdout",
		SDKLogLevel:               "warn",
		ServiceName:               "google-token-provider-test",
		MetricsEnabled:            true,
		TraceBatchTimeoutSeconds:  1,
		MetricReadIntervalSeconds: 60,
	})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestHTTPTransport(t *testing.T) {
	base := http.DefaultTransport

	tests := []struct {
		name    string
		cfg     config.ObserveConfig
		wrapped bool
	}{
		{
			name:    "telemetry disabled",
			cfg:     config.ObserveConfig{Enabled: false, HTTPTransportEnabled: true},
			wrapped: false,
		},
		{
			name:    "transport tracing disabled",
			cfg:     config.ObserveConfig{Enabled: true, HTTPTransportEnabled: false},
			wrapped: false,
		},
		{
			name:    "enabled",
			cfg:     config.ObserveConfig{Enabled: true, HTTPTransportEnabled: true, HTTPConnectionTraceEnabled: true},
			wrapped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := observe.HTTPTransport(base, tt.cfg)
			if tt.wrapped {
				assert.NotSame(t, base, transport)
			} else {
				assert.Same(t, base, transport)
			}
		})
	}
}

func TestHTTPTransport_RoundTrip(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer svr.Close()

	client := &http.Client{Transport: observe.HTTPTransport(http.DefaultTransport, config.ObserveConfig{
		Enabled:                    true,
		HTTPTransportEnabled:       true,
		HTTPConnectionTraceEnabled: true,
	})}

	resp, err := client.Get(svr.URL + "/token")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestSpanName(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "https://oauth2.googleapis.com/token?x=1", nil)
	assert.Equal(t, "POST /token", observe.SpanName("", r))

	r = httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	r.URL.Path = ""
	assert.Equal(t, "GET", observe.SpanName("", r))
}
