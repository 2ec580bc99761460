package cache

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var metricReader = sdkmetric.NewManualReader()

func TestMain(m *testing.M) {
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader)))
	os.Exit(m.Run())
}

// mockCache is a mock implementation of TokenCache for testing.
type mockCache struct {
	getValue Token
	getFound bool
	getError error
	setError error
	invError error
	closeErr error
	getCalls int
	setCalls int
	invCalls int
}

func (m *mockCache) Get(ctx context.Context, key string) (Token, bool, error) {
	m.getCalls++
	return m.getValue, m.getFound, m.getError
}

func (m *mockCache) Set(ctx context.Context, key string, token Token) error {
	m.setCalls++
	return m.setError
}

func (m *mockCache) Invalidate(ctx context.Context, key string) error {
	m.invCalls++
	return m.invError
}

func (m *mockCache) Close() error {
	return m.closeErr
}

func TestInstrumented_Get(t *testing.T) {
	hit := Token{AccessToken: "ya29.test", ExpiresAt: time.Now().Add(time.Hour)}
	expectedErr := errors.New("cache error")

	tests := []struct {
		name     string
		mock     *mockCache
		expected Token
		found    bool
		err      error
	}{
		{
			name:     "hit",
			mock:     &mockCache{getValue: hit, getFound: true},
			expected: hit,
			found:    true,
		},
		{
			name: "miss",
			mock: &mockCache{},
		},
		{
			name: "error",
			mock: &mockCache{getError: expectedErr},
			err:  expectedErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instrumented := NewInstrumented(tt.mock, "test")

			value, found, err := instrumented.Get(context.Background(), "test-key")

			assert.Equal(t, tt.err, err)
			assert.Equal(t, tt.found, found)
			assert.Equal(t, tt.expected, value)
			assert.Equal(t, 1, tt.mock.getCalls)
		})
	}
}

func TestInstrumented_Set(t *testing.T) {
	expectedErr := errors.New("set error")

	mock := &mockCache{}
	instrumented := NewInstrumented(mock, "test")

	err := instrumented.Set(context.Background(), "test-key", Token{AccessToken: "ya29.test"})
	require.NoError(t, err)

	mock.setError = expectedErr
	err = instrumented.Set(context.Background(), "test-key", Token{AccessToken: "ya29.test"})
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 2, mock.setCalls)
}

func TestInstrumented_Invalidate(t *testing.T) {
	expectedErr := errors.New("invalidate error")

	mock := &mockCache{invError: expectedErr}
	instrumented := NewInstrumented(mock, "test")

	err := instrumented.Invalidate(context.Background(), "test-key")

	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 1, mock.invCalls)
}

func TestInstrumented_Close(t *testing.T) {
	expectedErr := errors.New("close error")

	assert.NoError(t, NewInstrumented(&mockCache{}, "test").Close())
	assert.Equal(t, expectedErr, NewInstrumented(&mockCache{closeErr: expectedErr}, "test").Close())
}

func TestInstrumented_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()

	memory, err := NewMemory(time.Minute, 10)
	require.NoError(t, err)
	instrumented := NewInstrumented(memory, "outcomes")

	_, _, _ = instrumented.Get(ctx, "key")
	_ = instrumented.Set(ctx, "key", Token{AccessToken: "ya29.test", ExpiresAt: time.Now().Add(time.Hour)})
	_, _, _ = instrumented.Get(ctx, "key")
	_, _, _ = instrumented.Get(ctx, "key")

	counts := operationCounts(t, "outcomes")
	assert.Equal(t, int64(1), counts["get/miss"])
	assert.Equal(t, int64(2), counts["get/hit"])
	assert.Equal(t, int64(1), counts["set/success"])
}

// operationCounts collects the token_cache.operations counter for a cache
// type, keyed by "operation/status".
func operationCounts(t *testing.T, cacheType string) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, metricReader.Collect(context.Background(), &rm))

	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "token_cache.operations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)

			for _, dp := range sum.DataPoints {
				typ, _ := dp.Attributes.Value(attribute.Key("cache.type"))
				if typ.AsString() != cacheType {
					continue
				}
				op, _ := dp.Attributes.Value(attribute.Key("cache.operation"))
				status, _ := dp.Attributes.Value(attribute.Key("cache.status"))
				counts[op.AsString()+"/"+status.AsString()] += dp.Value
			}
		}
	}

	return counts
}
