// Package logging builds the slog logger used by the vchat commands.
//
// Logs go to stderr so that chat output on stdout stays clean:
//
//	logger := logging.New(logging.Config{Verbose: verbose})
//	logger.Debug("stream registered", "key", key)
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Config controls the logger output.
type Config struct {
	// Verbose lowers the level to Debug. The default level is Warn.
	Verbose bool

	// JSON switches from the text handler to the JSON handler.
	JSON bool

	// Writer receives the log lines (default: os.Stderr).
	Writer io.Writer
}

// Level returns the minimum level for the configuration.
func (c Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelWarn
}

// New returns a logger for the configuration.
func New(cfg Config) *slog.Logger {
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level()}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Setup builds a logger, installs it as the slog default and returns it.
func Setup(cfg Config) *slog.Logger {
	logger := New(cfg)
	slog.SetDefault(logger)
	return logger
}
