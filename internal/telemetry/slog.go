package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level backs the default logger's level so it can be changed at runtime.
var level = new(slog.LevelVar)

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
// The level can later be changed with SetLogLevel without rebuilding the handler.
func SetupLogger(format, lvl string) {
	setupLogger(os.Stdout, format, lvl)
}

func setupLogger(w io.Writer, format, lvl string) {
	level.Set(ParseLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level.Level() == slog.LevelDebug, // include file:line only when debugging
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", level.Level().String())
}

// SetLogLevel changes the level of the logger installed by SetupLogger.
func SetLogLevel(lvl string) {
	next := ParseLevel(lvl)
	if next == level.Level() {
		return
	}
	prev := level.Level()
	level.Set(next)
	slog.Info("log level changed", "from", prev.String(), "to", next.String())
}

// ParseLevel maps a configuration string onto a slog.Level, defaulting to info.
func ParseLevel(lvl string) slog.Level {
	switch strings.ToLower(lvl) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
