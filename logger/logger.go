// Package logger sets up the process-wide zerolog logger. Components derive
// sub-loggers from the returned logger with their own "component" field.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Options selects the log level and output.
type Options struct {
	Level  string // trace, debug, info, warn, error ("" = info)
	File   string // Log file path ("" = stdout)
	Pretty bool   // ConsoleWriter output, only when logging to stdout
}

// Init initializes the file logger, writing to modelmux.log in the current
// directory. Log level is configured via the LOG_LEVEL environment variable
// (trace, debug, info, warn, error).
func Init() (zerolog.Logger, error) {
	return InitWithOptions("modelmux.log", false)
}

// InitWithOptions initializes the logger with the given output options,
// taking the log level from LOG_LEVEL.
func InitWithOptions(logFile string, pretty bool) (zerolog.Logger, error) {
	return InitFrom(Options{Level: os.Getenv("LOG_LEVEL"), File: logFile, Pretty: pretty})
}

// InitFrom initializes the logger from fully resolved options. An empty
// File logs to stdout; Pretty switches stdout output to a human-readable
// ConsoleWriter.
func InitFrom(opts Options) (zerolog.Logger, error) {
	level := parseLogLevel(opts.Level)

	var output io.Writer
	switch {
	case opts.File != "":
		//nolint:gosec // G304: user-specified log file path is intentional
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		output = file
	case opts.Pretty:
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	default:
		output = os.Stdout
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	if opts.File != "" {
		log.Info().Str("path", opts.File).Str("level", level.String()).Msg("Logger initialized")
	} else {
		log.Info().Str("output", "stdout").Str("level", level.String()).Msg("Logger initialized")
	}
	return log, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
