// Package logging builds the structured logger shared by the use cases and CLI.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"
)

// New returns a console logger writing to stderr at the given level
// ("trace", "debug", "info", "warn", "error").
func New(level string) *log.Logger {
	return NewWithWriter(level, os.Stderr)
}

// NewWithWriter returns a logger writing plain console lines to w.
func NewWithWriter(level string, w io.Writer) *log.Logger {
	return &log.Logger{
		Level: log.ParseLevel(level),
		Writer: &log.ConsoleWriter{
			Writer:      w,
			ColorOutput: w == os.Stderr,
		},
	}
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{
		Level:  log.PanicLevel,
		Writer: log.IOWriter{Writer: io.Discard},
	}
}
