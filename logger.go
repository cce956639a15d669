package pdfview

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/pdfview/internal/render"
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
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for pdfview and its render workers.
// By default, pdfview produces no log output. Pass nil to restore the
// silent default.
//
// Log levels used by pdfview:
//   - [slog.LevelDebug]: batch submission, cancellation and reconciliation
//   - [slog.LevelInfo]: document open/close, page sizes resolved
//   - [slog.LevelWarn]: tile rasterization failures, open retries
//
// Example:
//
//	pdfview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	render.SetLogger(l)
}

// Logger returns the current logger used by pdfview.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
