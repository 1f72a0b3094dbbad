// Package logging holds the process-wide logger used by every gqlpipe package.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/Norgate-AV/gqlpipe/internal/logging/logfields"
)

// DefaultLogger is the base logger. Packages derive their own entry from it
// with WithSubsys.
var DefaultLogger = InitializeDefaultLogger()

// InitializeDefaultLogger returns a logger with the default text formatter
// writing to stderr at info level.
func InitializeDefaultLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	return logger
}

// SetupLogging configures DefaultLogger from the CLI switches. Verbose wins
// over silent.
func SetupLogging(verbose, silent bool) {
	switch {
	case verbose:
		DefaultLogger.SetLevel(logrus.DebugLevel)
	case silent:
		DefaultLogger.SetLevel(logrus.ErrorLevel)
	default:
		DefaultLogger.SetLevel(logrus.InfoLevel)
	}
}

// SetOutput redirects DefaultLogger, mostly for tests.
func SetOutput(w io.Writer) {
	DefaultLogger.SetOutput(w)
}

// WithSubsys returns an entry tagged with the given subsystem.
func WithSubsys(subsys string) *logrus.Entry {
	return DefaultLogger.WithField(logfields.LogSubsys, subsys)
}
