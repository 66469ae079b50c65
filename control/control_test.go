package control_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/momentics/hioload-wire/control"
)

const sample = `
[server]
addr = "0.0.0.0:9000"
read_buffer = 1024
idle_timeout = "5s"

[http]
max_chunk_size_line = 64

[websocket]
max_message = 65536
subprotocol = "jsonrpc"

[log]
level = "debug"
format = "json"
`

func TestParseConfig(t *testing.T) {
	cfg, err := control.ParseConfig(sample)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != "0.0.0.0:9000" || cfg.Server.ReadBuffer != 1024 || cfg.Server.IdleTimeout != 5*time.Second {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Server.MaxBuffer != control.DefaultMaxBuffer || cfg.HTTP.MaxHeadSize != control.DefaultMaxHeadSize {
		t.Errorf("defaults not kept: %+v %+v", cfg.Server, cfg.HTTP)
	}
	if cfg.HTTP.MaxChunkSizeLine != 64 || cfg.WebSocket.MaxMessage != 65536 || cfg.WebSocket.Subprotocol != "jsonrpc" {
		t.Errorf("http/websocket = %+v %+v", cfg.HTTP, cfg.WebSocket)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestParseConfigErrors(t *testing.T) {
	cases := []struct{ name, data, want string }{
		{"syntax", "[server\n", "config parse failed"},
		{"unknown key", "[server]\nport = 1\n", "server.port"},
		{"empty addr", "[server]\naddr = \"\"\n", "server.addr"},
		{"max below read", "[server]\nread_buffer = 4096\nmax_buffer = 100\n", "server.max_buffer"},
		{"message too big", "[websocket]\nmax_message = 99999999\n", "websocket.max_message"},
		{"format", "[log]\nformat = \"xml\"\n", "log.format"},
	}
	for _, tc := range cases {
		if _, err := control.ParseConfig(tc.data); err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%s: err = %v, want mention of %q", tc.name, err, tc.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wire.toml")
	if _, err := control.LoadConfig(path); err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Errorf("missing file: %v", err)
	}
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := control.LoadConfig(path)
	if err != nil || cfg.Server.Addr != "0.0.0.0:9000" {
		t.Errorf("LoadConfig = %+v, %v", cfg.Server, err)
	}
}

func TestConfigStore(t *testing.T) {
	store := control.NewConfigStore(control.DefaultConfig())
	var seen []int
	store.OnReload(func(c control.Config) { seen = append(seen, c.Server.ReadBuffer) })

	next := control.DefaultConfig()
	next.Server.ReadBuffer = 512
	if err := store.SetConfig(next); err != nil {
		t.Fatal(err)
	}
	bad := next
	bad.Server.Addr = ""
	if err := store.SetConfig(bad); err == nil {
		t.Error("invalid config accepted")
	}
	if got := store.Snapshot().Server.ReadBuffer; got != 512 {
		t.Errorf("snapshot read_buffer = %d", got)
	}
	if len(seen) != 1 || seen[0] != 512 {
		t.Errorf("listeners saw %v", seen)
	}
}

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wire.toml")
	if err := os.WriteFile(path, []byte("[server]\nread_buffer = 1024\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := control.NewConfigStore(control.DefaultConfig())
	reloaded := make(chan int, 16)
	store.OnReload(func(c control.Config) { reloaded <- c.Server.ReadBuffer })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- control.WatchFile(ctx, store, path, 10*time.Millisecond, zerolog.Nop()) }()

	// expect rewrites the file through save until the store reports want.
	expect := func(want int, save func() error) {
		t.Helper()
		deadline := time.After(3 * time.Second)
		for {
			if err := save(); err != nil {
				t.Fatal(err)
			}
			select {
			case n := <-reloaded:
				if n == want {
					return
				}
			case <-time.After(200 * time.Millisecond):
			case <-deadline:
				t.Fatalf("read_buffer %d not picked up", want)
			}
		}
	}

	expect(16384, func() error {
		return os.WriteFile(path, []byte("[server]\nread_buffer = 16384\n"), 0o644)
	})
	expect(2048, func() error {
		tmp := filepath.Join(dir, "wire.toml.tmp")
		if err := os.WriteFile(tmp, []byte("[server]\nread_buffer = 2048\n"), 0o644); err != nil {
			return err
		}
		return os.Rename(tmp, path)
	})
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("[server]\nread_buffer = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	if got := store.Snapshot().Server.ReadBuffer; got != 2048 {
		t.Errorf("unrelated file changed read_buffer to %d", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("WatchFile = %v", err)
	}
}

func TestWatchFileMissingDir(t *testing.T) {
	store := control.NewConfigStore(control.DefaultConfig())
	path := filepath.Join(t.TempDir(), "missing", "wire.toml")
	if err := control.WatchFile(context.Background(), store, path, 0, zerolog.Nop()); err == nil {
		t.Error("expected an error for a missing directory")
	}
}

func TestMetricsRegistry(t *testing.T) {
	reg := control.NewMetricsRegistry()
	reg.Set("bar.status", "ok")
	reg.Add("conn.accepted", 2)
	reg.Add("conn.accepted", 1)
	reg.Merge("ws.", map[string]int64{"frames_received": 4, "messages": 2})
	reg.Merge("ws.", map[string]int64{"frames_received": 1})

	if reg.Counter("conn.accepted") != 3 || reg.Counter("ws.frames_received") != 5 {
		t.Errorf("counters = %v", reg.GetSnapshot())
	}
	snap := reg.GetSnapshot()
	if snap["bar.status"] != "ok" || snap["ws.messages"] != int64(2) {
		t.Errorf("snapshot = %v", snap)
	}
	if reg.Updated().IsZero() {
		t.Error("update time not recorded")
	}
}

func TestDebugProbes(t *testing.T) {
	dp := control.NewDebugProbes()
	control.RegisterPlatformProbes(dp)
	dp.RegisterProbe("test_probe", func() any { return "ok" })
	state := dp.DumpState()
	if state["test_probe"] != "ok" {
		t.Errorf("probe missing: %v", state)
	}
	if n, ok := state["platform.cpus"].(int); !ok || n < 1 {
		t.Errorf("platform.cpus = %v", state["platform.cpus"])
	}
	dp.UnregisterProbe("test_probe")
	for _, name := range dp.Names() {
		if name == "test_probe" {
			t.Error("probe not removed")
		}
	}
}
