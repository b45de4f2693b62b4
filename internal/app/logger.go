package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. The handler format follows
// LogFormat; everything else writes to stdout with source locations on.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
