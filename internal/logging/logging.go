// Package logging configures the service's structured logger.
//
// Grounded on the teacher's sibling repo dselans-mmmbop, which logs
// through a package-level logrus logger (logrus.Info/logrus.Errorf,
// logrus.SetLevel(logrus.DebugLevel)); here the logger is constructed and
// passed around explicitly instead of relying on logrus's global instance,
// since an HTTP service hands the logger down through the handler and
// facade layers rather than calling it from a single CLI entrypoint.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a *logrus.Logger writing to stderr with full timestamps. An
// empty level, or one that logrus.ParseLevel rejects, falls back to
// logrus.InfoLevel.
func New(level string) *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stderr
	logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}

	lvl := logrus.InfoLevel
	if level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			lvl = parsed
		}
	}
	logger.SetLevel(lvl)

	return logger
}
