package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging facade used across the emulator. A *logrus.Logger
// satisfies it, as does the null logger.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// New returns a logrus backed Logger writing plain text to stderr.
func New() Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	l.Formatter = &logrus.TextFormatter{
		DisableColors:    true,
		DisableTimestamp: true,
		DisableSorting:   true,
		DisableQuote:     true,
	}
	return l
}

// NewWithOutput returns a logrus backed Logger at debug level writing to w.
func NewWithOutput(w io.Writer) Logger {
	l := New().(*logrus.Logger)
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	return l
}
