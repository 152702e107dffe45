// Package observability wires structured logging, OpenTelemetry tracing and
// metrics for every code996 entry point (CLI commands and the MCP server).
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

// AppMode identifies how the binary was launched.
type AppMode string

const (
	// ModeCLI is a one-shot analyze, rank or trend command.
	ModeCLI AppMode = "cli"
	// ModeMCP is the long-running MCP stdio server.
	ModeMCP AppMode = "mcp"
)

// scopeName names the tracer and meter of every code996 instrument.
const scopeName = "code996"

const defaultShutdownTimeout = 5 * time.Second

// Config holds the observability settings of one process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	// Environment is a free-form deployment label such as "ci".
	Environment string
	Mode        AppMode

	Export Export
	Log    Log

	// ShutdownTimeout bounds the final flush. Zero means five seconds.
	ShutdownTimeout time.Duration
}

// Export selects where spans and metrics go. With no Endpoint nothing is
// exported and the providers are no-ops.
type Export struct {
	// Endpoint is an OTLP gRPC collector address such as "localhost:4317".
	Endpoint string
	Headers  map[string]string
	Insecure bool

	// SampleRatio is the fraction of runs traced. Zero or one traces all.
	SampleRatio float64
	// SampleAll overrides SampleRatio and traces every run.
	SampleAll bool
	// AuthorSpans keeps the per-author spans of a ranking.
	AuthorSpans bool
}

// Enabled reports whether telemetry leaves the process.
func (e Export) Enabled() bool {
	return e.Endpoint != ""
}

// Log configures the slog logger.
type Log struct {
	Level slog.Level
	JSON  bool
	// Output receives records. Nil means os.Stderr; stdout carries reports
	// and the MCP transport.
	Output io.Writer
}

// DefaultConfig returns the zero-setup configuration: info logs on stderr
// and nothing exported.
func DefaultConfig() Config {
	return Config{
		ServiceName:     scopeName,
		Mode:            ModeCLI,
		Log:             Log{Level: slog.LevelInfo},
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return defaultShutdownTimeout
	}

	return c.ShutdownTimeout
}

// ParseHeaders parses collector headers written as "key=value,key=value".
// Pairs without "=" are skipped; nothing usable yields nil.
func ParseHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")

		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[key] = strings.TrimSpace(value)
	}

	return headers
}
