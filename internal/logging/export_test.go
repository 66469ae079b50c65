package logging

// ApplyOverrides exposes the environment lookup for tests.
var ApplyOverrides = applyOverrides
