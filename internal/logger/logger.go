package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger: JSON at info level in production, a
// console writer at debug level in dev. The result is also installed as the
// global logger for code running outside a request.
func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	return logger
}
