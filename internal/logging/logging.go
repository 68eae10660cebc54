// Package logging builds the process logger from configuration values.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stderr at the given level ("debug", "info",
// "warn", "error") in the given format ("text" or "json"). Empty values select
// info and text.
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)

	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// ParseLevel accepts the level names used in configuration, including "warning".
func ParseLevel(level string) (logrus.Level, error) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		return logrus.InfoLevel, nil
	}
	parsed, err := logrus.ParseLevel(lvl)
	if err != nil {
		return logrus.InfoLevel, errors.Wrapf(err, "log level %q", level)
	}
	return parsed, nil
}
