package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
)

// Output formats accepted by SetupLogger.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// SetupLogger installs the process-wide logger provider.
//
// "json" routes records through slog's JSON handler wrapped by ErrFmtHandler,
// in CloudLogging format. "console" uses zerolog's human readable writer.
func SetupLogger(loglevel, format string) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	return SetupLoggerTo(os.Stderr, level, format)
}

// SetupLoggerTo is SetupLogger with an explicit destination.
func SetupLoggerTo(w io.Writer, level Level, format string) error {
	switch format {
	case FormatJSON, "":
		ops := slog.HandlerOptions{
			AddSource: true,
			Level:     slog.Level(level),
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				switch attr.Key {
				case slog.LevelKey:
					attr = slog.Attr{Key: "severity", Value: attr.Value}
				case slog.MessageKey:
					attr = slog.Attr{Key: "message", Value: attr.Value}
				case slog.SourceKey:
					attr = slog.Attr{Key: "logging.googleapis.com/sourceLocation", Value: attr.Value}
				}
				return attr
			},
		}
		handler := WrapByErrFmtHandler(slog.NewJSONHandler(w, &ops))
		slog.SetDefault(slog.New(handler))
		SetProvider(NewSlogProvider(slog.Default(), level))
	case FormatConsole:
		SetProvider(NewZerologProvider(NewConsoleWriter(w), level))
	default:
		return errors.Newf("invalid log format: %q", format)
	}
	return nil
}

// ToLogLevel parses a configuration level name.
func ToLogLevel(level string) (Level, error) {
	switch level {
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.Newf("invalid log level: %q", level)
	}
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
