package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"quicktask/backend/internal/config"
)

// Configure sets zerolog's process-wide options. Call it once from main
// before any logger is built.
func Configure() {
	zerolog.TimestampFieldName = "timestamp"
}

// New builds the application logger. Development gets a console writer,
// everything else emits JSON lines on stdout.
func New(cfg *config.Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	w := out
	format := cfg.Log.Format
	if format == "" && !cfg.IsProduction() {
		format = "console"
	}
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", "quicktask-backend").
		Logger()
}

// Fallback is used before configuration has loaded.
func Fallback() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
