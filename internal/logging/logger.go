package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	Level(zerolog.InfoLevel).
	With().
	Timestamp().
	Logger()

// Init configures the global structured logger. Output goes to stderr so
// plan and state rendering on stdout stays machine-consumable.
func Init(level string) {
	var lvl zerolog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn", "warning":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	default:
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	logger = logger.Level(lvl)
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	return logger
}

// Debug logs a debug message with alternating key/value fields.
func Debug(msg string, kv ...any) { event(logger.Debug(), msg, kv) }

// Info logs an info message with alternating key/value fields.
func Info(msg string, kv ...any) { event(logger.Info(), msg, kv) }

// Warn logs a warning with alternating key/value fields.
func Warn(msg string, kv ...any) { event(logger.Warn(), msg, kv) }

// Error logs an error with alternating key/value fields.
func Error(msg string, kv ...any) { event(logger.Error(), msg, kv) }

func event(e *zerolog.Event, msg string, kv []any) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, kv[i+1])
	}
	e.Msg(msg)
}
