package audit_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/chinmina/google-token-provider/internal/audit"
	"github.com/chinmina/google-token-provider/internal/testhelpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin(t *testing.T) {
	ctx, entry := audit.Begin(context.Background())

	assert.Same(t, entry, audit.Log(ctx))

	nested, other := audit.Begin(ctx)
	assert.NotSame(t, entry, other)
	assert.Same(t, other, audit.Log(nested))
	assert.Same(t, entry, audit.Log(ctx))
}

func TestLog_WithoutEntry(t *testing.T) {
	entry := audit.Log(context.Background())
	require.NotNil(t, entry)

	entry.Subject = "ignored"
	assert.Empty(t, audit.Log(context.Background()).Subject)
}

func TestEnd(t *testing.T) {
	t.Run("log written", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		var buf bytes.Buffer
		ctx := zerolog.New(&buf).WithContext(context.Background())

		ctx, entry := audit.Begin(ctx)
		entry.ServiceAccount = "robot@project.iam.gserviceaccount.com"
		entry.Source = audit.SourceExchange

		entry.End(ctx)()

		var result map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
		assert.Equal(t, "audit_event", result["message"])
		assert.NotContains(t, result, "level")
		assert.Contains(t, result, "duration")
	})

	t.Run("log written at audit level", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		auditWritten := false
		ctx := withLogHook(
			context.Background(),
			zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
				if level == audit.Level {
					auditWritten = true
				}
			}),
		)

		ctx, entry := audit.Begin(ctx)
		entry.End(ctx)()

		assert.True(t, auditWritten, "audit log entry should be written")
	})

	t.Run("log written on panic", func(t *testing.T) {
		testhelpers.SetupLogger(t)

		auditWritten := false
		ctx := withLogHook(
			context.Background(),
			zerolog.HookFunc(func(e *zerolog.Event, level zerolog.Level, msg string) {
				if level == audit.Level {
					auditWritten = true
				}
			}),
		)

		ctx, entry := audit.Begin(ctx)

		assert.PanicsWithValue(t, "signer unavailable", func() {
			defer entry.End(ctx)()
			entry.Error = "failure pre-panic"
			panic("signer unavailable")
		})

		assert.Equal(t, "failure pre-panic; panic: signer unavailable", entry.Error)
		assert.True(t, auditWritten, "audit log entry should be written")
	})
}

func TestFail(t *testing.T) {
	entry := &audit.Entry{}

	entry.Fail(nil)
	assert.Empty(t, entry.Error)

	entry.Fail(errors.New("token exchange failed: 400 Bad Request: invalid_grant"))
	assert.Equal(t, "token exchange failed: 400 Bad Request: invalid_grant", entry.Error)
}

func withLogHook(ctx context.Context, hook zerolog.HookFunc) context.Context {
	testLog := log.Logger.With().Logger().Hook(hook)
	return testLog.WithContext(ctx)
}

func serialize(t *testing.T, entry *audit.Entry) map[string]any {
	t.Helper()

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	logger.Log().EmbedObject(entry).Send()

	var result map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &result))
	return result
}

func TestNestedDictSerialization(t *testing.T) {
	expiry := time.Date(2024, 3, 1, 13, 0, 0, 0, time.UTC)

	result := serialize(t, &audit.Entry{
		ServiceAccount: "robot@project.iam.gserviceaccount.com",
		KeySource:      "der",
		KeyFingerprint: "0123456789abcdef",
		Subject:        "user@example.com",
		Scopes:         []string{"https://www.googleapis.com/auth/drive"},
		Source:         audit.SourceCache,
		ExpiresAt:      expiry,
		Error:          "",
	})

	t.Run("credential fields nested", func(t *testing.T) {
		credential, ok := result["credential"].(map[string]any)
		require.True(t, ok, "expected 'credential' dict in log output")
		assert.Equal(t, "robot@project.iam.gserviceaccount.com", credential["serviceAccount"])
		assert.Equal(t, "der", credential["keySource"])
		assert.Equal(t, "0123456789abcdef", credential["keyFingerprint"])
		assert.Equal(t, "user@example.com", credential["subject"])
	})

	t.Run("token fields nested", func(t *testing.T) {
		token, ok := result["token"].(map[string]any)
		require.True(t, ok, "expected 'token' dict in log output")
		assert.Equal(t, []any{"https://www.googleapis.com/auth/drive"}, token["scopes"])
		assert.Equal(t, "cache", token["source"])
		assert.Equal(t, expiry.Format(zerolog.TimeFieldFormat), token["expiresAt"])
	})

	t.Run("error omitted when empty", func(t *testing.T) {
		assert.NotContains(t, result, "error")
	})
}

func TestOptionalDictElision(t *testing.T) {
	t.Run("empty entry omits all dicts", func(t *testing.T) {
		result := serialize(t, &audit.Entry{})
		assert.NotContains(t, result, "credential")
		assert.NotContains(t, result, "token")
		assert.NotContains(t, result, "error")
		assert.NotContains(t, result, "duration")
	})

	t.Run("fallback token has no credential", func(t *testing.T) {
		result := serialize(t, &audit.Entry{Source: audit.SourceFallback})
		assert.NotContains(t, result, "credential")

		token, ok := result["token"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "fallback", token["source"])
		assert.NotContains(t, token, "expiresAt")
	})

	t.Run("error present when set", func(t *testing.T) {
		result := serialize(t, &audit.Entry{Error: "something broke"})
		assert.Equal(t, "something broke", result["error"])
	})
}
