// Package logging builds the logrus logger shared by all components. Output
// goes to a size-rotated file, optionally mirrored to stderr when no
// dashboard owns the terminal.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures the logger
type Options struct {
	File       string
	Level      string
	Format     string
	MaxSizeMB  int
	MaxBackups int
	// Stderr mirrors every line to standard error
	Stderr bool
}

// New returns a configured logger and a closer for its file
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	level := logrus.InfoLevel
	if opts.Level != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	logger := logrus.New()
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case FormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	case FormatText, "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q", opts.Format)
	}

	var writers []io.Writer
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		writers = append(writers, rotating)
		closer = rotating
	}
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger, closer, nil
}

// Component returns an entry tagged with the component name
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
