// Package applog builds the process-wide zerolog.Logger from the
// IMETEO_LOG_* environment variables named in spec.md §6, grounded on
// original_source/.../core/logging.py's level/format/file selection —
// reimplemented with structured key=value/JSON fields instead of a
// custom logging.Formatter, since zerolog already is this module's
// structured-logging library (see DESIGN.md).
package applog

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Config mirrors the three IMETEO_LOG_* variables.
type Config struct {
	// Level is one of debug, info, warn, error (case-insensitive);
	// defaults to info.
	Level string
	// Format is "json" (default, matching StructuredFormatter) or
	// "console" (matching ConsoleFormatter's human-readable output).
	Format string
	// File, if non-empty, additionally writes logs to this path;
	// console/stderr output is never suppressed, matching the Python
	// implementation's dual console+file handlers.
	File string
}

// FromEnv reads IMETEO_LOG_LEVEL, IMETEO_LOG_FORMAT, IMETEO_LOG_FILE.
func FromEnv() Config {
	return Config{
		Level:  os.Getenv("IMETEO_LOG_LEVEL"),
		Format: os.Getenv("IMETEO_LOG_FORMAT"),
		File:   os.Getenv("IMETEO_LOG_FILE"),
	}
}

// New builds a zerolog.Logger from cfg. A bad File path is reported as
// a warning on the console logger, never a fatal error — logging setup
// must not be why the process can't start (spec.md §7's config-error
// class names malformed flags/ranges, not a missing log directory).
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	} else {
		out = os.Stderr
	}

	logger := zerolog.New(out).With().Timestamp().Logger()

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.File).Msg("applog: could not open log file, logging to console only")
			return logger
		}
		logger = zerolog.New(zerolog.MultiLevelWriter(out, f)).With().Timestamp().Logger()
	}

	return logger.Level(level)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
