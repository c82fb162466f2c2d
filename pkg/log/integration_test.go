package log

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	ecgerrors "github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoggerInterface tests the Logger interface implementation
func TestLoggerInterface(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", SessionKindKey, KindTraining)
	testLogger.Warn("warning message", "warning_code", "TEST_WARNING")
	testLogger.Error("error message", fmt.Errorf("test error"), HTTPStatusKey, 500)

	require.NotEmpty(t, buffer.String())
	for _, msg := range []string{"debug message", "info message", "warning message", "error message"} {
		assert.True(t, testLogger.ContainsMessage(msg), "missing %q", msg)
	}

	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0)) // JSON numbers decode as float64
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "test error"))
	assert.True(t, testLogger.ContainsField(HTTPStatusKey, 500.0))
}

// TestLoggerWith tests the With method for context-aware logging
func TestLoggerWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	sessionLogger := testLogger.With(
		SessionKindKey, KindTraining,
		SessionIDKey, "abc",
	)
	sessionLogger.Info("Polling started", PollIntervalMsKey, 2000)

	assert.True(t, testLogger.ContainsField(SessionKindKey, KindTraining))
	assert.True(t, testLogger.ContainsField(SessionIDKey, "abc"))
	assert.True(t, testLogger.ContainsField(PollIntervalMsKey, 2000.0))
}

// TestLoggerEnabled tests the Enabled method
func TestLoggerEnabled(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)
	ctx := context.Background()

	assert.True(t, testLogger.Enabled(ctx, LevelInfo))
	assert.True(t, testLogger.Enabled(ctx, LevelError))
	assert.False(t, testLogger.Enabled(ctx, LevelDebug))

	testLogger.Debug("this should not appear")
	testLogger.Info("this should appear")

	assert.False(t, testLogger.ContainsMessage("this should not appear"))
	assert.True(t, testLogger.ContainsMessage("this should appear"))
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelDebug)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			testLogger.With(PollTickKey, i).Info("tick")
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestLoggerProviderIntegration(t *testing.T) {
	provider, buffer := NewTestLoggerProvider(LevelDebug)

	provider.GetLogger().Info("provider test message")
	provider.GetLoggerWithName("upload").Info("named logger message")

	out := buffer.String()
	assert.Contains(t, out, "provider test message")
	assert.Contains(t, out, "named logger message")
	assert.Contains(t, out, `"component":"upload"`)

	provider.SetLevel(LevelError)
	provider.GetLogger().Info("filtered")
	assert.NotContains(t, buffer.String(), "filtered")
}

func TestZerologProvider(t *testing.T) {
	var buf bytes.Buffer
	p := NewZerologProvider(&buf, LevelInfo)

	logger := p.GetLoggerWithName("training").With(SessionIDKey, "abc")
	logger.Debug("hidden")
	logger.Info("Polling started", PollIntervalMsKey, 2000)
	logger.Error("Status read failed", fmt.Errorf("boom"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"component":"training"`)
	assert.Contains(t, out, `"session.id":"abc"`)
	assert.Contains(t, out, `"poll.interval_ms":2000`)
	assert.Contains(t, out, `"error":"boom"`)

	assert.False(t, logger.Enabled(context.Background(), LevelDebug))
	p.SetLevel(LevelDebug)
	assert.True(t, p.GetLogger().Enabled(context.Background(), LevelDebug))
}

func TestSlogBackendAddsStacktrace(t *testing.T) {
	var buf bytes.Buffer
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(&buf, nil))
	logger := NewSlogLogger(slog.New(handler))

	logger.Error("Submission failed", ecgerrors.New("server down"), SessionKindKey, KindTraining)

	out := buf.String()
	assert.Contains(t, out, `"error":"server down"`)
	assert.Contains(t, out, `"stacktrace"`)
	assert.Contains(t, out, `"session.kind":"training"`)
}

func TestSetupLoggerTo(t *testing.T) {
	defer SetProvider(NewZerologProvider(NewConsoleWriter(&bytes.Buffer{}), LevelInfo))

	var buf bytes.Buffer
	require.NoError(t, SetupLoggerTo(&buf, LevelWarn, FormatJSON))
	GetLoggerWithName("config").Info("quiet")
	GetLoggerWithName("config").Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), `"message":"loud"`)
	assert.Contains(t, buf.String(), `"severity":"WARN"`)

	err := SetupLoggerTo(&buf, LevelInfo, "xml")
	assert.Error(t, err)
}

func TestToLogLevel(t *testing.T) {
	tests := map[string]Level{"debug": LevelDebug, "info": LevelInfo, "": LevelInfo, "warn": LevelWarn, "error": LevelError}
	for in, want := range tests {
		got, err := ToLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ToLogLevel("verbose")
	assert.Error(t, err)
}

func TestNormalizeFields(t *testing.T) {
	err := fmt.Errorf("x")
	got := normalizeFields([]any{err, "a", 1, "dangling"})
	assert.Equal(t, []any{ErrAttrKey, err, "a", 1, "!BADKEY", "dangling"}, got)
	assert.Nil(t, normalizeFields(nil))
	assert.True(t, strings.HasPrefix(LevelWarn.String(), "WARN"))
}
