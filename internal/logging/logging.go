package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. When pretty is set, output is formatted for
// terminals; otherwise single-line JSON goes to stdout. Unknown levels fall
// back to info.
func New(level string, pretty bool) zerolog.Logger {
	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return logger.Level(parsed)
}

// Nop returns a disabled logger for components that default to silence.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
