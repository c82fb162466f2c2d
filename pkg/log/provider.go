package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	ecgerrors "github.com/YuminosukeSato/ecgstudio/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	providerMu sync.RWMutex
	provider   LoggerProvider = NewZerologProvider(NewConsoleWriter(os.Stderr), LevelInfo)
)

func init() {
	ecgerrors.SetZerologWarnFunc(func(w error) {
		GetLoggerWithName("warnings").Warn(w.Error(), "warning", w)
	})
}

// SetProvider replaces the process-wide provider.
func SetProvider(p LoggerProvider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	provider = p
}

// GetLogger returns the default logger of the process-wide provider.
func GetLogger() Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLogger()
}

// GetLoggerWithName returns a component logger from the process-wide provider.
func GetLoggerWithName(name string) Logger {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return provider.GetLoggerWithName(name)
}

// NewConsoleWriter returns zerolog's human readable writer.
func NewConsoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
}

// ===========================================================================
// zerolog backend
// ===========================================================================

type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger adapts a zerolog.Logger to Logger.
func NewZerologLogger(zl zerolog.Logger) Logger {
	return &zerologLogger{zl: zl}
}

func (l *zerologLogger) Debug(msg string, fields ...any) { l.emit(l.zl.Debug(), msg, fields) }
func (l *zerologLogger) Info(msg string, fields ...any)  { l.emit(l.zl.Info(), msg, fields) }
func (l *zerologLogger) Warn(msg string, fields ...any)  { l.emit(l.zl.Warn(), msg, fields) }
func (l *zerologLogger) Error(msg string, fields ...any) { l.emit(l.zl.Error(), msg, fields) }

func (l *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: l.zl.With().Fields(normalizeFields(fields)).Logger()}
}

func (l *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return l.zl.GetLevel() <= toZerologLevel(level)
}

func (l *zerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	ev.Fields(normalizeFields(fields)).Msg(msg)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// ZerologProvider hands out zerolog-backed loggers sharing one writer.
type ZerologProvider struct {
	mu   sync.RWMutex
	base zerolog.Logger
}

// NewZerologProvider creates a provider writing to w at the given level.
func NewZerologProvider(w io.Writer, level Level) *ZerologProvider {
	return &ZerologProvider{
		base: zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger(),
	}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *ZerologProvider) GetLogger() Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base)
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *ZerologProvider) GetLoggerWithName(name string) Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return NewZerologLogger(p.base.With().Str(ComponentKey, name).Logger())
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *ZerologProvider) SetLevel(level Level) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base = p.base.Level(toZerologLevel(level))
}

// ===========================================================================
// slog backend
// ===========================================================================

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a slog.Logger to Logger.
func NewSlogLogger(l *slog.Logger) Logger {
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, slogArgs(fields)...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, slogArgs(fields)...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, slogArgs(fields)...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, slogArgs(fields)...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(slogArgs(fields)...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

// SlogProvider hands out slog-backed loggers.
type SlogProvider struct {
	base  *slog.Logger
	level *slog.LevelVar
}

// NewSlogProvider wraps base. SetLevel only filters records emitted through
// this provider; the handler's own level still applies.
func NewSlogProvider(base *slog.Logger, level Level) *SlogProvider {
	lv := &slog.LevelVar{}
	lv.Set(slog.Level(level))
	return &SlogProvider{base: base, level: lv}
}

// GetLogger implements LoggerProvider.GetLogger.
func (p *SlogProvider) GetLogger() Logger {
	return &levelGate{Logger: NewSlogLogger(p.base), level: p.level}
}

// GetLoggerWithName implements LoggerProvider.GetLoggerWithName.
func (p *SlogProvider) GetLoggerWithName(name string) Logger {
	return &levelGate{Logger: NewSlogLogger(p.base.With(ComponentKey, name)), level: p.level}
}

// SetLevel implements LoggerProvider.SetLevel.
func (p *SlogProvider) SetLevel(level Level) {
	p.level.Set(slog.Level(level))
}

type levelGate struct {
	Logger
	level *slog.LevelVar
}

func (g *levelGate) allowed(level Level) bool { return slog.Level(level) >= g.level.Level() }

func (g *levelGate) Debug(msg string, fields ...any) {
	if g.allowed(LevelDebug) {
		g.Logger.Debug(msg, fields...)
	}
}

func (g *levelGate) Info(msg string, fields ...any) {
	if g.allowed(LevelInfo) {
		g.Logger.Info(msg, fields...)
	}
}

func (g *levelGate) Warn(msg string, fields ...any) {
	if g.allowed(LevelWarn) {
		g.Logger.Warn(msg, fields...)
	}
}

func (g *levelGate) Error(msg string, fields ...any) {
	if g.allowed(LevelError) {
		g.Logger.Error(msg, fields...)
	}
}

func (g *levelGate) With(fields ...any) Logger {
	return &levelGate{Logger: g.Logger.With(fields...), level: g.level}
}

func (g *levelGate) Enabled(ctx context.Context, level Level) bool {
	return g.allowed(level) && g.Logger.Enabled(ctx, level)
}

// ===========================================================================
// field helpers
// ===========================================================================

// normalizeFields turns call-site fields into an even-length key/value list
// with string keys. A leading error value is keyed under ErrAttrKey.
func normalizeFields(fields []any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)+1)
	if err, ok := fields[0].(error); ok {
		out = append(out, ErrAttrKey, err)
		fields = fields[1:]
	}
	for i := 0; i < len(fields); i += 2 {
		key := fmt.Sprint(fields[i])
		if i+1 >= len(fields) {
			out = append(out, "!BADKEY", key)
			break
		}
		out = append(out, key, fields[i+1])
	}
	return out
}

func slogArgs(fields []any) []any {
	normalized := normalizeFields(fields)
	if len(normalized) >= 2 && normalized[0] == ErrAttrKey {
		if err, ok := normalized[1].(error); ok {
			return append([]any{ErrAttr(err)}, normalized[2:]...)
		}
	}
	return normalized
}
