// control/config.go
// Author: momentics <momentics@gmail.com>
//
// TOML configuration for a wire server: defaults, loading and validation.

package control

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the decoded configuration file.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	HTTP      HTTPConfig      `toml:"http"`
	WebSocket WebSocketConfig `toml:"websocket"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig controls the listener and per-connection buffers.
type ServerConfig struct {
	Addr        string        `toml:"addr"`
	ReadBuffer  int           `toml:"read_buffer"`
	MaxBuffer   int           `toml:"max_buffer"`
	IdleTimeout time.Duration `toml:"idle_timeout"`
}

// HTTPConfig bounds the HTTP/1.1 parser.
type HTTPConfig struct {
	MaxHeadSize      int `toml:"max_head_size"`
	MaxChunkSizeLine int `toml:"max_chunk_size_line"`
}

// WebSocketConfig bounds the frame codec.
type WebSocketConfig struct {
	MaxMessage  int    `toml:"max_message"`
	Subprotocol string `toml:"subprotocol"`
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

const (
	DefaultAddr             = "127.0.0.1:8000"
	DefaultReadBuffer       = 4096
	DefaultMaxBuffer        = 1 << 20
	DefaultIdleTimeout      = 60 * time.Second
	DefaultMaxHeadSize      = 16 << 10
	DefaultMaxChunkSizeLine = 256
	DefaultMaxMessage       = 1 << 20
)

// DefaultConfig returns a configuration with every field set.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:        DefaultAddr,
			ReadBuffer:  DefaultReadBuffer,
			MaxBuffer:   DefaultMaxBuffer,
			IdleTimeout: DefaultIdleTimeout,
		},
		HTTP: HTTPConfig{
			MaxHeadSize:      DefaultMaxHeadSize,
			MaxChunkSizeLine: DefaultMaxChunkSizeLine,
		},
		WebSocket: WebSocketConfig{MaxMessage: DefaultMaxMessage},
		Log:       LogConfig{Level: "info", Format: "console"},
	}
}

// LoadConfig reads path over the defaults and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes TOML text over the defaults and validates the result.
func ParseConfig(data string) (Config, error) {
	cfg := DefaultConfig()
	if err := decodeToml(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config parse failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := decodeToml(string(data), out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func decodeToml(data string, out *Config) error {
	md, err := toml.Decode(data, out)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks ranges and cross-field constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.ReadBuffer <= 0 {
		return fmt.Errorf("server.read_buffer must be > 0")
	}
	if c.Server.MaxBuffer < c.Server.ReadBuffer {
		return fmt.Errorf("server.max_buffer must be >= server.read_buffer")
	}
	if c.Server.IdleTimeout < 0 {
		return fmt.Errorf("server.idle_timeout must be >= 0")
	}
	if c.HTTP.MaxHeadSize <= 0 || c.HTTP.MaxHeadSize > c.Server.MaxBuffer {
		return fmt.Errorf("http.max_head_size must be in (0, server.max_buffer]")
	}
	if c.HTTP.MaxChunkSizeLine < 3 {
		return fmt.Errorf("http.max_chunk_size_line must be >= 3")
	}
	if c.WebSocket.MaxMessage <= 0 || c.WebSocket.MaxMessage > c.Server.MaxBuffer {
		return fmt.Errorf("websocket.max_message must be in (0, server.max_buffer]")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json")
	}
	return nil
}
