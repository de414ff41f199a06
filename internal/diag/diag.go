// Package diag is a thin logging wrapper, kept deliberately close to
// dr8co-kong's fmt-first style (the teacher never pulls in a
// third-party logging library; it writes straight to stderr with
// fmt.Fprintf). The one addition is a per-Compile correlation id, via
// google/uuid, so concurrent compiles interleaved in the same process
// log output stay distinguishable — a concern the teacher's
// single-session REPL never had to handle.
package diag

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"
)

// Logger prefixes every line with a correlation id for one Compile call.
type Logger struct {
	id     string
	std    *log.Logger
}

// New creates a Logger writing to w (os.Stderr in normal use), tagged
// with a fresh correlation id.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	id := uuid.NewString()
	return &Logger{id: id, std: log.New(w, "", log.LstdFlags)}
}

// ID returns this logger's correlation id.
func (l *Logger) ID() string { return l.id }

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...any) {
	l.std.Printf("[%s] %s", l.id, fmt.Sprintf(format, args...))
}

// Warnf logs a warning line.
func (l *Logger) Warnf(format string, args ...any) {
	l.std.Printf("[%s] WARN %s", l.id, fmt.Sprintf(format, args...))
}

// Errorf logs an error line.
func (l *Logger) Errorf(format string, args ...any) {
	l.std.Printf("[%s] ERROR %s", l.id, fmt.Sprintf(format, args...))
}
