// Package logger constructs the process-wide zerolog.Logger.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/iamramakanthreddyk/fuelsync-new-sub010/internal/config"
)

// New returns a configured zerolog.Logger: console writer with colors in
// development (JSON lines on stderr otherwise), level driven by cfg.LogLevel
// (falling back to debug in dev).
func New(cfg *config.Config) zerolog.Logger {
	var out io.Writer = os.Stderr
	if cfg.IsDevelopment() {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	if cfg.IsDevelopment() && cfg.LogLevel == "" {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(out).With().Timestamp().Str("service", "fuelsync-ledger").Logger()
}
