// Package logging configures the process-wide zerolog logger for the
// subject generation tools.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init points the global logger at stderr with a console writer and applies
// the level from SUBJECTGEN_LOG_LEVEL (debug, info, warn, error; default info).
func Init() {
	zerolog.SetGlobalLevel(parseLevel(os.Getenv("SUBJECTGEN_LOG_LEVEL")))
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
