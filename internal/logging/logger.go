// Package logging builds the logrus loggers used across bifrost.
//
// Usage:
//
//	log := logging.New("bifrost", "info", "json")
//	log.WithField("ip", ip).Info("access credential issued")
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New creates a logger for a named service. level is a logrus level name
// (default info); format is "json" (default) or "text". Output goes to
// stdout and every line carries the service field.
func New(service, level, format string) *logrus.Entry {
	return NewWithOutput(os.Stdout, service, level, format)
}

// NewWithOutput is New writing to out.
func NewWithOutput(out io.Writer, service, level, format string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(out)

	if format == "text" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil || level == "" {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	return log.WithField("service", service)
}

// Discard returns a logger that drops everything. Intended for tests.
func Discard() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}
