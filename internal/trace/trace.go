// Package trace is the small diagnostic logger threaded through the ACFG
// back-end, playing the role of the original's `log_t* log` parameter.
// Nothing in the retrieved corpus reaches for a structured-logging
// library (no zap/logrus/zerolog/slog anywhere in it); the teacher's own
// cmd/ralph-cc/main.go reports diagnostics with plain fmt.Fprintf to
// stderr, so this follows the same convention rather than introducing a
// dependency the corpus never shows.
package trace

import (
	"fmt"
	"io"
	"os"
)

// Logger gates named trace points behind an enable flag, mirroring calls
// like dprint(log, "PATH_COVER_EDGE", ...) in the original source.
type Logger struct {
	w       io.Writer
	enabled bool
}

// New creates a Logger writing to w. If w is nil, os.Stderr is used.
func New(w io.Writer, enabled bool) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{w: w, enabled: enabled}
}

// Discard is a Logger that drops everything; used where the caller has no
// interest in diagnostics (spec.md's graph construction takes a logger
// explicitly, so tests need a no-op instance readily available).
var Discard = New(io.Discard, false)

// Printf emits a formatted trace line when logging is enabled.
func (l *Logger) Printf(format string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	fmt.Fprintf(l.w, format+"\n", args...)
}

// Point emits a named trace point with its argument list space-joined,
// mirroring the original's dprint(log, "NAME", arg1, arg2, ...) call
// shape used at pass decision points.
func (l *Logger) Point(name string, args ...any) {
	if l == nil || !l.enabled {
		return
	}
	fmt.Fprintf(l.w, "%s", name)
	for _, a := range args {
		fmt.Fprintf(l.w, " %v", a)
	}
	fmt.Fprintln(l.w)
}
