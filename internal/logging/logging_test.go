package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
		ok   bool
	}{
		{"debug", zerolog.DebugLevel, true},
		{" WARNING ", zerolog.WarnLevel, true},
		{"off", zerolog.Disabled, true},
		{"", zerolog.InfoLevel, false},
		{"loud", zerolog.InfoLevel, false},
	}
	for _, tc := range cases {
		got, ok := logging.ParseLevel(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseLevel(%q) = %v, %v", tc.in, got, ok)
		}
	}
}

func TestOverrides(t *testing.T) {
	env := map[string]string{
		logging.EnvLogLevel:     "error",
		logging.EnvLogFormat:    "json",
		logging.EnvLogTimestamp: "false",
		logging.EnvLogNoColor:   "maybe",
	}
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	logging.ApplyOverrides(&cfg, func(k string) string { return env[k] })
	if cfg.Level != zerolog.ErrorLevel || cfg.Format != logging.FormatJSON || cfg.Timestamp || cfg.NoColor {
		t.Errorf("cfg = %+v", cfg)
	}

	logging.ApplySettings(&cfg, "", "bogus")
	if cfg.Level != zerolog.ErrorLevel || cfg.Format != logging.FormatJSON {
		t.Errorf("empty settings changed cfg: %+v", cfg)
	}
}

func TestBuildJSON(t *testing.T) {
	var out bytes.Buffer
	cfg := logging.Config{Level: zerolog.InfoLevel, Format: logging.FormatJSON}
	l := logging.Build(&out, "wire", cfg)
	l.Debug().Msg("hidden")
	l.Info().Str("k", "v").Msg("shown")
	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("debug line written at info level: %s", got)
	}
	if !strings.Contains(got, `"app":"wire"`) || !strings.Contains(got, `"k":"v"`) || strings.Contains(got, `"time"`) {
		t.Errorf("line = %s", got)
	}
}

func TestBuildConsole(t *testing.T) {
	var out bytes.Buffer
	l := logging.Build(&out, "", logging.DefaultConfig(logging.ProfileTest))
	l.Debug().Msg("ready")
	if got := out.String(); !strings.Contains(got, "ready") || strings.Contains(got, "\x1b[") {
		t.Errorf("console line = %q", got)
	}
}
