// Package logging holds the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Options selects the level, format and destination of the logger
type Options struct {
	// Level is one of debug, info, warn, error; anything else means info
	Level string

	// JSON switches from text lines to JSON lines
	JSON bool

	// Out defaults to stderr
	Out io.Writer
}

var def atomic.Value

func init() {
	def.Store(newLogger(Options{}))
}

// Configure replaces the default logger.
func Configure(opts Options) {
	def.Store(newLogger(opts))
}

func newLogger(opts Options) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(parseLevel(opts.Level))
	if opts.Out != nil {
		l.SetOutput(opts.Out)
	} else {
		l.SetOutput(os.Stderr)
	}
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return l
}

func parseLevel(s string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// L returns the current process-wide logger.
func L() *logrus.Logger {
	l, _ := def.Load().(*logrus.Logger)
	return l
}
