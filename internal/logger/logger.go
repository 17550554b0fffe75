// Package logger configures the logrus logger used for diagnostics.
package logger

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to w.
//   - level: debug, info, warn, error
//   - format: text or json
func New(level, format string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)

	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be json or text", format)
	}

	return log, nil
}

// Discard returns a logger that drops everything, for callers that do not
// want diagnostics streamed.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}
