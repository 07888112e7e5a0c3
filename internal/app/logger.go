package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide logger. Deployments set LOG_FORMAT=json
// so entries reach the collector as structured records; any other value
// falls back to the text handler for local runs.
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
