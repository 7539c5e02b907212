// Package logging builds the logrus logger shared by the server components.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New creates a logger writing to out.
// format is "json" or "text"; an unknown level falls back to info.
func New(level, format string, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)

	if format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger
}
