// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type LoggingConf struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
	JSON  bool   `yaml:"json"`
}

// Setup installs the global logger. Output goes to stderr in console format
// unless JSON is requested or a log file is set. The returned closer must be
// called before exit.
func Setup(conf LoggingConf) (io.Closer, error) {
	level := zerolog.InfoLevel
	if conf.Level != "" {
		lvl, err := zerolog.ParseLevel(conf.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", conf.Level, err)
		}
		level = lvl
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if conf.Path != "" {
		f, err := os.OpenFile(conf.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file: %w", err)
		}
		out, closer = f, f
	} else if !conf.JSON {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
