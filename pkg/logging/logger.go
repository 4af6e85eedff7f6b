// Package logging configures zerolog for the Zoho client and its CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelTrace adds the retry chatter of the token endpoint client.
	LevelTrace LogLevel = "trace"

	// LevelDebug logs every HTTP exchange and cache lookup.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. Component loggers created
// afterwards with NewLogger inherit its output.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a level given on the command line or in a config file.
func ParseLevel(s string) (LogLevel, error) {
	switch l := LogLevel(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want trace, debug, info, warn or error)", s)
	}
}

// parseLevel maps level onto zerolog, falling back to info.
func parseLevel(level LogLevel) zerolog.Level {
	l, err := ParseLevel(string(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	zl, err := zerolog.ParseLevel(string(l))
	if err != nil {
		return zerolog.InfoLevel
	}
	return zl
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// MaskToken shortens a secret for logs and terminal output:
// "1000.4f1d...c9e2". Short values are fully masked.
func MaskToken(token string) string {
	if len(token) <= 12 {
		return strings.Repeat("*", len(token))
	}
	return token[:9] + "..." + token[len(token)-4:]
}

// Log levels
//
// Debug: HTTP exchanges, metadata cache hits, pagination start
// Info: refreshes, 401 retries, completed sweeps, server lifecycle
// Warn: 429 blocks, pagination retries, cache or Redis failures (request continues)
// Error: rejected refresh tokens, exhausted retries, startup failures
//
// Context fields:
//   - component: zoho-dispatcher, zoho-auth, zoho-oauth, zoho-pagination, zoho-ratelimit, zoho-client, zoho-http, zoho-cli
//   - product: crm, books, people, desk
//   - path, method, status, duration
//   - error_class: auth, rate_limit, client, server, network, validation
//   - wait, attempt, page_size, records, requests
