package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Log is the logger shared by the cli and the run pipeline.
var Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

// SetLogger configures Log for the given verbosity. NEXTBOOT_DEBUG in the environment forces debug.
func SetLogger(debug bool) {
	SetLoggerOutput(os.Stderr, debug)
}

// SetLoggerOutput is SetLogger writing to out.
func SetLoggerOutput(out io.Writer, debug bool) {
	level := zerolog.InfoLevel
	if debug || os.Getenv("NEXTBOOT_DEBUG") != "" {
		level = zerolog.DebugLevel
	}
	Log = zerolog.New(zerolog.ConsoleWriter{Out: out}).Level(level).With().Timestamp().Logger()
}
