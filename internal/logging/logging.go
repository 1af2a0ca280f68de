package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls logger construction.
type Options struct {
	// Level is one of trace, debug, info, warn, error. Empty means info.
	Level string
	// Pretty switches to the human-readable console writer.
	Pretty bool
	// Output defaults to stderr when nil.
	Output io.Writer
}

var (
	mu         sync.RWMutex
	defaultLog = New(Options{Level: os.Getenv("LOG_LEVEL")})
)

// New builds a zerolog.Logger from the given options.
func New(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).With().Timestamp().Logger()
	return logger.Level(parseLevel(opts.Level))
}

// Default returns the process-wide logger.
func Default() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLog
}

// SetDefault replaces the process-wide logger.
func SetDefault(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLog = l
}

// Configure builds a logger from options and installs it as the default.
func Configure(opts Options) zerolog.Logger {
	l := New(opts)
	SetDefault(l)
	return l
}

func parseLevel(level string) zerolog.Level {
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
