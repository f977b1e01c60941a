// Package build provides the logging bootstrap shared by every package's
// log.go: a per-subsystem btclog.Logger created against a common backend, so
// subsystem log level can be adjusted independently at runtime.
package build

import (
	"os"

	"github.com/btcsuite/btclog"
)

// logWriter is the default destination for subsystem loggers until the host
// process installs its own via SetLogWriter.
var logWriter = os.Stdout

var backend = btclog.NewBackend(logWriter)

// NewSubLogger creates a new btclog.Logger for the given subsystem tag. The
// returned logger defaults to the Info level; callers needing DB-level
// visibility into migrations, etc. can raise it with SetLevel.
func NewSubLogger(tag string, _ interface{}) btclog.Logger {
	logger := backend.Logger(tag)
	logger.SetLevel(btclog.LevelInfo)
	return logger
}

// SetLogWriter swaps the backend all subsequently created subsystem loggers
// write to. Subsystems already created via NewSubLogger keep their existing
// backend; callers wanting a global change should do this before any package
// init() runs.
func SetLogWriter(w *os.File) {
	logWriter = w
	backend = btclog.NewBackend(logWriter)
}
