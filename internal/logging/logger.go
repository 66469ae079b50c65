// File: internal/logging/logger.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger for app from the runtime defaults and the
// environment, and installs it as the global zerolog logger.
func New(app string) zerolog.Logger {
	cfg := DefaultConfig(ProfileRuntime)
	ApplyEnv(&cfg)
	return Install(app, cfg)
}

// Install builds a stdout logger from cfg and makes it the global logger.
func Install(app string, cfg Config) zerolog.Logger {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		cfg.NoColor = true
	}
	l := Build(colorable.NewColorableStdout(), app, cfg)
	zerolog.SetGlobalLevel(cfg.Level)
	log.Logger = l
	return l
}

// Build creates a logger writing to w without touching global state.
func Build(w io.Writer, app string, cfg Config) zerolog.Logger {
	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: cfg.NoColor}
	}
	ctx := zerolog.New(w).Level(cfg.Level).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if app != "" {
		ctx = ctx.Str("app", app)
	}
	return ctx.Logger()
}
