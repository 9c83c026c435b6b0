// Package logging provides the structured logger for the worker.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// New creates the root logger. Mode "console" renders human-readable
// output for interactive runs; anything else emits JSON lines, the
// format the log shipper expects from a daemonized worker.
func New(mode, level string) zerolog.Logger {
	var output io.Writer = os.Stdout
	if mode == "console" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	return logger.Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return parsed
}
