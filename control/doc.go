// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection for hioload-wire
// servers.
//
// Provides concurrent-safe state handling primitives including:
//   - TOML configuration with defaults and validation
//   - A live configuration store with reload listeners and a file watcher
//   - Counters and gauges for connection and protocol statistics
//   - Named debug probes, including platform and CPU feature probes
package control
