package cli

import (
	"io"

	"github.com/sirupsen/logrus"
)

// LoggerOption configures a standalone logger.
type LoggerOption func(*logrus.Logger)

// WithLevel sets the minimum level.
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) { l.SetLevel(level) }
}

// WithFormatter replaces the formatter.
func WithFormatter(formatter logrus.Formatter) LoggerOption {
	return func(l *logrus.Logger) { l.SetFormatter(formatter) }
}

// NewLogger returns a logger on w that ignores the component logging
// config. Commands use it for records that belong on stdout, such as an
// access log.
func NewLogger(w io.Writer, opts ...LoggerOption) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	for _, opt := range opts {
		opt(logger)
	}
	return logger
}

// NewStreamLogger is NewLogger with the formatter --json selects.
func NewStreamLogger(w io.Writer, asJSON bool) *logrus.Logger {
	if asJSON {
		return NewLogger(w, WithFormatter(&logrus.JSONFormatter{}))
	}
	return NewLogger(w)
}
