package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds the process-wide logger. Production emits JSON lines to
// stdout at info level; development switches to the console writer at debug
// so streamed chat deltas and task polls are readable while iterating.
func NewLogger(appEnv string) zerolog.Logger {
	out := io.Writer(os.Stdout)
	level := zerolog.InfoLevel
	if appEnv == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		level = zerolog.DebugLevel
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Logger is the logging type the rest of the module passes around. Packages
// take it by value, so tests hand in zerolog.Nop() without any setup.
type Logger = zerolog.Logger
