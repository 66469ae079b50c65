// Package logging
// Author: momentics <momentics@gmail.com>
//
// Logger construction with environment overrides.

package logging

import (
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "HIOLOAD_LOG_LEVEL"
	EnvLogFormat    = "HIOLOAD_LOG_FORMAT"
	EnvLogTimestamp = "HIOLOAD_LOG_TIMESTAMP"
	EnvLogNoColor   = "HIOLOAD_LOG_NOCOLOR"
)

// Format selects the log encoding.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Profile picks the defaults before overrides are applied.
type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config describes one logger.
type Config struct {
	Level     zerolog.Level
	Format    Format
	Timestamp bool
	NoColor   bool
}

// DefaultConfig returns the defaults for profile.
func DefaultConfig(profile Profile) Config {
	switch profile {
	case ProfileTest:
		return Config{Level: zerolog.DebugLevel, Format: FormatConsole, NoColor: true}
	default:
		return Config{Level: zerolog.InfoLevel, Format: FormatConsole, Timestamp: true}
	}
}

// ApplyEnv overrides cfg from the HIOLOAD_LOG_* variables. Unparsable
// values are ignored.
func ApplyEnv(cfg *Config) {
	applyOverrides(cfg, os.Getenv)
}

// ApplySettings overrides cfg with textual level and format settings, e.g.
// from a config file. Empty or unknown values leave cfg unchanged.
func ApplySettings(cfg *Config, level, format string) {
	if lvl, ok := ParseLevel(level); ok {
		cfg.Level = lvl
	}
	if f, ok := ParseFormat(format); ok {
		cfg.Format = f
	}
}

func applyOverrides(cfg *Config, getenv func(string) string) {
	ApplySettings(cfg, getenv(EnvLogLevel), getenv(EnvLogFormat))
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

// ParseFormat maps "console" or "json" to a Format.
func ParseFormat(raw string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatConsole:
		return FormatConsole, true
	case FormatJSON:
		return FormatJSON, true
	default:
		return FormatConsole, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
