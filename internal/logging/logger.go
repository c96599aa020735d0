package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/ethereum/go-ethereum/log"
)

// New creates a logger at the provided level. If the level string is
// invalid it defaults to info.
func New(level string, json bool) log.Logger {
	return NewWithWriter(os.Stderr, level, json)
}

// NewWithWriter is New with an explicit destination
func NewWithWriter(w io.Writer, level string, json bool) log.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	if json {
		return log.NewLogger(log.JSONHandlerWithLevel(w, lvl))
	}
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, false))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() log.Logger {
	return log.NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
