package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBuffered(level Level, withStack bool) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(Config{Output: &buf, MinLevel: level, WithStack: withStack}), &buf
}

func decodeEntries(t *testing.T, buf *bytes.Buffer) []Entry {
	t.Helper()
	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		require.True(t, json.Valid([]byte(line)), "not JSON: %s", line)
		var e Entry
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func lastEntry(t *testing.T, buf *bytes.Buffer) Entry {
	t.Helper()
	entries := decodeEntries(t, buf)
	require.NotEmpty(t, entries)
	return entries[len(entries)-1]
}

func TestNew(t *testing.T) {
	l, buf := newBuffered(LevelDebug, true)

	assert.Equal(t, buf, l.output)
	assert.NotNil(t, l.zl)
	assert.Equal(t, LevelDebug, l.minLevel)
	assert.True(t, l.withStack)

	d := Default()
	assert.Equal(t, LevelInfo, d.minLevel)
	assert.False(t, d.withStack)
}

func TestLevels(t *testing.T) {
	l, buf := newBuffered(LevelDebug, false)

	l.Debug("probing lh-1-L")
	l.Info("manifest built")
	l.Warn("list skipped")
	l.Error("page fetch failed", errors.New("upstream 502"))

	entries := decodeEntries(t, buf)
	require.Len(t, entries, 4)

	assert.Equal(t, LevelDebug, entries[0].Level)
	assert.Equal(t, "probing lh-1-L", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[1].Level)
	assert.Equal(t, LevelWarn, entries[2].Level)
	assert.Equal(t, LevelError, entries[3].Level)
	assert.Equal(t, "upstream 502", entries[3].Error)
	assert.NotEmpty(t, entries[3].Timestamp)
}

func TestMinLevelFilters(t *testing.T) {
	l, buf := newBuffered(LevelWarn, false)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Zero(t, buf.Len())

	l.Warn("shown")
	assert.Equal(t, "shown", lastEntry(t, buf).Message)
}

func TestErrorStack(t *testing.T) {
	l, buf := newBuffered(LevelError, true)
	l.Error("breaker open", errors.New("circuit breaker is open"))
	assert.NotEmpty(t, lastEntry(t, buf).Stack)

	plain, buf := newBuffered(LevelError, false)
	plain.Error("breaker open", errors.New("circuit breaker is open"))
	assert.Empty(t, lastEntry(t, buf).Stack)
}

func TestWithFields(t *testing.T) {
	l, buf := newBuffered(LevelDebug, false)
	fl := l.WithFields(map[string]interface{}{
		"provider": "listhost",
		"list_id":  "123",
	})

	fl.Debug("probe started")
	e := lastEntry(t, buf)
	assert.Equal(t, LevelDebug, e.Level)
	assert.Equal(t, "listhost", e.Context["provider"])
	assert.Equal(t, "123", e.Context["list_id"])

	fl.Error("probe failed", errors.New("timeout"))
	e = lastEntry(t, buf)
	assert.Equal(t, "timeout", e.Error)
	assert.Equal(t, "listhost", e.Context["provider"])
}

func TestErrorValuesInFields(t *testing.T) {
	l, buf := newBuffered(LevelInfo, false)

	l.WithFields(map[string]interface{}{
		"error": errors.New("upstream 503"),
	}).Warn("probe failed")

	assert.Equal(t, "upstream 503", lastEntry(t, buf).Context["error"])
}

func TestContextValues(t *testing.T) {
	l, buf := newBuffered(LevelInfo, false)

	ctx := ContextWithRequestID(context.Background(), "req-123")
	l.InfoContext(ctx, "request received")
	e := lastEntry(t, buf)
	assert.Equal(t, "req-123", e.Context["request_id"])
	assert.NotContains(t, e.Context, "catalog_id")

	ctx = ContextWithCatalogID(ctx, "lh-42-L")
	l.WithFields(map[string]interface{}{"skip": 100}).InfoContext(ctx, "catalog served")
	e = lastEntry(t, buf)
	assert.Equal(t, "req-123", e.Context["request_id"])
	assert.Equal(t, "lh-42-L", e.Context["catalog_id"])
	assert.EqualValues(t, 100, e.Context["skip"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		l := Nop()
		l.Info("dropped")
		l.WithFields(map[string]interface{}{"k": "v"}).Error("dropped", errors.New("x"))
	})
}

func TestNewWithLevel(t *testing.T) {
	tests := []struct {
		level       string
		want        Level
		expectStack bool
	}{
		{"debug", LevelDebug, true},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l := NewWithLevel(tt.level)
			assert.Equal(t, tt.want, l.minLevel)
			assert.Equal(t, tt.expectStack, l.withStack)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, parseLevel("debug"))
	assert.Equal(t, LevelWarn, parseLevel("warn"))
	assert.Equal(t, LevelError, parseLevel("error"))
	assert.Equal(t, LevelInfo, parseLevel(""))
	assert.Equal(t, LevelInfo, parseLevel("verbose"))
}

func resetLoggers() {
	mu.Lock()
	appLogger = nil
	providerLogger = nil
	mu.Unlock()
}

func TestInitializeLoggers(t *testing.T) {
	resetLoggers()
	t.Cleanup(resetLoggers)

	InitializeLoggers("debug", "warn")

	assert.Equal(t, LevelDebug, AppLogger().minLevel)
	assert.Equal(t, LevelWarn, ProviderLogger().minLevel)
}

func TestSetLoggers(t *testing.T) {
	t.Cleanup(resetLoggers)

	app := NewWithLevel("error")
	SetAppLogger(app)
	assert.Same(t, app, AppLogger())

	prov := NewWithLevel("debug")
	SetProviderLogger(prov)
	assert.Same(t, prov, ProviderLogger())
}

func TestSingletons(t *testing.T) {
	resetLoggers()
	t.Cleanup(resetLoggers)

	require.NotNil(t, AppLogger())
	assert.Same(t, AppLogger(), AppLogger())
	assert.Same(t, ProviderLogger(), ProviderLogger())
	assert.NotSame(t, AppLogger(), ProviderLogger())
}
