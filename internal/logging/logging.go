// Package logging sets up the process-wide zerolog logger. Both
// cmd/storage and cmd/api call New once at startup; every other
// package takes a zerolog.Logger as a constructor argument rather than
// reaching for a global.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a console-writer zerolog.Logger at the given level,
// tagged with the process's component name (e.g. "storage" or "api").
// levelName is parsed case-insensitively; an unrecognized name falls
// back to info rather than failing startup over a logging flag.
func New(component, levelName string) zerolog.Logger {
	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}
