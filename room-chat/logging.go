package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type logConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Pretty bool   `mapstructure:"pretty"`
}

// setupLogging points the global logger at cfg.File. The terminal belongs to
// the TUI, so an empty file discards logs rather than writing to stderr.
func setupLogging(cfg logConfig) (io.Closer, error) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	if cfg.File == "" {
		log.Logger = zerolog.New(io.Discard)
		return io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	var w io.Writer = f
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.DateTime}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return f, nil
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
