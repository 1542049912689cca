// Package logger provides named loggers that share one stderr handler.
// Each subsystem gets its own name (client, acceptor, tracker URL, peer
// address) so interleaved connection logs stay attributable.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cenkalti/log"
)

// Logger is the logging interface used throughout the client.
type Logger log.Logger

var handler = newHandler()

func newHandler() *log.WriterHandler {
	h := log.NewWriterHandler(os.Stderr)
	h.SetFormatter(formatter{})
	h.SetLevel(log.INFO)
	return h
}

// SetLevel changes the level of the shared handler. The default is INFO;
// DEBUG turns on per-connection and per-announce traces.
func SetLevel(l log.Level) {
	handler.SetLevel(l)
}

// New returns a Logger whose messages are prefixed with name.
func New(name string) Logger {
	l := log.NewLogger(name)
	l.SetLevel(log.DEBUG) // level filtering happens in the shared handler
	l.SetHandler(handler)
	return l
}

type formatter struct{}

// Format renders a record as "2026-08-27 18:15:57 INFO    [peer -> 1.2.3.4:6881] message (peer.go:42)".
func (formatter) Format(rec *log.Record) string {
	return fmt.Sprintf("%s %-7s [%s] %s (%s:%d)",
		rec.Time.Format("2006-01-02 15:04:05"),
		rec.Level.String(),
		rec.LoggerName,
		rec.Message,
		filepath.Base(rec.Filename),
		rec.Line)
}
