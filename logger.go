package computegraph

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/computegraph/backend"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from compile workers.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for computegraph and its compiler back
// ends. By default nothing is logged.
//
// SetLogger is safe for concurrent use. Pass nil to restore the silent
// default.
//
// Log levels used by computegraph:
//   - [slog.LevelDebug]: source assembly, cache hits, compile internals
//   - [slog.LevelInfo]: lifecycle events (proxy published, cook cache ready)
//   - [slog.LevelWarn]: skipped edges, non-fatal compile failures, missing providers
//   - [slog.LevelError]: default kernel failures, right before the fatal handler
//
// Example:
//
//	computegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	backend.SetLogger(l)
}

// Logger returns the current logger used by computegraph.
// Sub-packages (datainterface, loader) call this to share the same
// configuration without introducing import cycles.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
