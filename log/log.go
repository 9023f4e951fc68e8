// Package log abstracts the underlying logging implementation.
//
// Separate package from the fixture code so that test helpers can depend on
// it without an import cycle.
package log

import (
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Level is the minimum log level that will be processed by the logger.
type Level uint8

// Log levels.
const (
	Debug Level = iota + 1 // + 1 to make 0 log level panic.
	Info
	Warn
	Error
)

// String returns the lowercase name of the level.
func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "invalid"
	}
}

// ParseLevel parses the names returned by Level.String.
func ParseLevel(s string) (Level, error) {
	for _, l := range []Level{Debug, Info, Warn, Error} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, errors.Errorf("unknown log level %q", s)
}

// Logger logs messages with different log levels.
type Logger interface {
	// WithField returns a logger that adds key=value to every entry.
	WithField(key string, value interface{}) Logger

	Debug(...interface{})
	Debugf(string, ...interface{})
	Info(...interface{})
	Infof(string, ...interface{})
	Warn(...interface{})
	Warnf(string, ...interface{})
	Error(...interface{})
	Errorf(string, ...interface{})
}

type logger struct {
	*logrus.Logger
}

func (l logger) WithField(key string, value interface{}) Logger {
	return entry{l.Logger.WithField(key, value)}
}

type entry struct {
	*logrus.Entry
}

func (e entry) WithField(key string, value interface{}) Logger {
	return entry{e.Entry.WithField(key, value)}
}

// NewLogger creates a logger that outputs to the given writer with the minimum
// log level.
func NewLogger(output io.Writer, minLevel Level) Logger {
	l := logger{
		Logger: logrus.New(),
	}

	l.Formatter = &logrus.TextFormatter{
		DisableTimestamp: minLevel != Debug,
	}

	l.Out = output
	switch minLevel {
	case Debug:
		l.Level = logrus.DebugLevel
	case Info:
		l.Level = logrus.InfoLevel
	case Warn:
		l.Level = logrus.WarnLevel
	case Error:
		l.Level = logrus.ErrorLevel
	default:
		panic("invalid level given")
	}

	return l
}

// Discard returns a logger that drops everything.
func Discard() Logger {
	return NewLogger(io.Discard, Error)
}
