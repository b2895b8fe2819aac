package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLoggerComponentAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentBudget, Output: &buf})

	l.Info("Budget created", FieldUserID, "u1")
	l.Debug("hidden")
	l.WithComponent(ComponentTips).Warn("Slow generation")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "budget", lines[0][FieldComponent])
	assert.Equal(t, "u1", lines[0][FieldUserID])
	assert.Equal(t, "tips", lines[1][FieldComponent])
	assert.Equal(t, "WARN", lines[1]["level"])
}

func TestFromContextAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf})

	assert.Equal(t, "unknown", FromContext(context.Background()).Component())

	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "req-1", lines[0][FieldRequestID])
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	req := httptest.NewRequest(http.MethodPost, "/api/budgets?x=1", nil)

	sl.LogHTTPEnd(context.Background(), req, 422, 12, "10.0.0.1")
	sl.LogError(context.Background(), "Reset failed", errors.New("boom"), ComponentBudget, OpReset, NewFields().WithUser("u1"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, float64(422), lines[0][FieldStatusCode])
	assert.Equal(t, false, lines[0][FieldSuccess])
	assert.Equal(t, "boom", lines[1][FieldError])
	assert.Equal(t, "reset", lines[1][FieldOperation])
	assert.Equal(t, "u1", lines[1][FieldUserID])
}
