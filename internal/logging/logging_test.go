package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureJSON points the global logger at a buffer for the duration of the test.
func captureJSON(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	Init(Config{Level: level, JSON: true, Output: &buf})
	t.Cleanup(func() { Init(DefaultConfig()) })
	return &buf
}

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var m map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &m))
	return m
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestConfigs(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, DefaultConfig().Level)
	assert.True(t, DaemonConfig().JSON)

	cfg := DebugConfig()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.True(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("chatty"))
}

func TestInitSetsDebugFlag(t *testing.T) {
	captureJSON(t, slog.LevelDebug)
	assert.True(t, DebugEnabled)

	captureJSON(t, slog.LevelInfo)
	assert.False(t, DebugEnabled)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	Debug("hidden")
	assert.Empty(t, buf.String())

	Info("saved coupon", KeyCouponID, "c1", KeyStore, "Acme")
	line := lastLine(t, buf)
	assert.Equal(t, "saved coupon", line["msg"])
	assert.Equal(t, "c1", line[KeyCouponID])
	assert.Equal(t, "Acme", line[KeyStore])
}

// =============================================================================
// Masking Handler Tests
// =============================================================================

func TestSensitiveAttributesAreMasked(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	Info("calling vision api", "api_key", "sk-ant-api03-abcdef", KeyWebhook, "https://discord.com/api/webhooks/123456/very-secret-token")
	line := lastLine(t, buf)

	assert.Equal(t, "********", line["api_key"])
	assert.NotContains(t, line[KeyWebhook], "very-secret-token")
}

func TestErrorValuesAreMasked(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	Error("request failed", KeyError, errors.New("bad key sk-ant-api03-zzzzzzzzzz"))
	line := lastLine(t, buf)
	assert.NotContains(t, line[KeyError], "zzzzzzzzzz")
	assert.Contains(t, line[KeyError], "sk-ant-")
}

func TestWithAttrsAreMasked(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	With("authorization", "Bearer abc").Info("x")
	assert.Equal(t, "********", lastLine(t, buf)["authorization"])
}

// =============================================================================
// Context Tests
// =============================================================================

func TestRequestIDs(t *testing.T) {
	id := GenerateRequestID()
	assert.Len(t, id, 16)
	assert.NotEqual(t, id, GenerateRequestID())

	ctx := NewRequestContext(context.Background())
	assert.Len(t, RequestIDFromContext(ctx), 16)
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "", RequestIDFromContext(nil))
}

func TestContextLoggingCarriesRequestID(t *testing.T) {
	buf := captureJSON(t, slog.LevelInfo)

	ctx := WithRequestID(context.Background(), "req-42")
	InfoContext(ctx, "handled")
	assert.Equal(t, "req-42", lastLine(t, buf)[KeyRequestID])
}

// =============================================================================
// Mask Helper Tests
// =============================================================================

func TestMaskHelpers(t *testing.T) {
	assert.Equal(t, "", MaskValue(""))
	assert.Equal(t, "***", MaskValue("abc"))
	assert.Equal(t, "********", MaskValue("a-very-long-secret"))

	assert.Equal(t, "abc***", MaskPartial("abcdef", 3))
	assert.Equal(t, "**", MaskPartial("ab", 3))

	assert.True(t, IsSensitiveField("ANTHROPIC_API_KEY"))
	assert.True(t, IsSensitiveField("X-Api-Key"))
	assert.False(t, IsSensitiveField(KeyCouponID))
	assert.False(t, IsSensitiveField(KeyStore))
}

func TestMaskString(t *testing.T) {
	assert.Equal(t, "see http://localhost:8080/api/process-image", MaskString("see http://localhost:8080/api/process-image"))
	assert.Equal(t, "https://hooks.slack.com/servic***", MaskString("https://hooks.slack.com/services/T0/B0/XYZ"))
}

func TestMaskArgsAndHeaders(t *testing.T) {
	args := MaskArgs([]any{"token", "abc", "count", 3, "secret", 42})
	assert.Equal(t, []any{"token", "***", "count", 3, "secret", "********"}, args)

	h := MaskHeaders(map[string]string{"x-api-key": "sk", "content-type": "application/json"})
	assert.Equal(t, "***", h["x-api-key"])
	assert.Equal(t, "application/json", h["content-type"])
}
