package config

import (
	"os"
	"time"

	"github.com/gear6io/shuttle/pkg/errors"
	"github.com/rs/zerolog"
)

// parseLevel maps a configured level string to a zerolog level
func parseLevel(level string) (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(ErrInvalidLogLevel, err, "unknown log level '%s'", level)
	}
	return lvl, nil
}

// SetupLogger builds the root logger from the logging configuration
func SetupLogger(cfg *Config) (zerolog.Logger, error) {
	lvl, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if !cfg.Log.Enabled {
		return zerolog.Nop(), nil
	}

	var logger zerolog.Logger
	switch cfg.Log.Format {
	case "console":
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(out)
	case "json":
		logger = zerolog.New(os.Stderr)
	default:
		return zerolog.Nop(), errors.Newf(ErrInvalidLogFormat, "log format must be 'json' or 'console', got '%s'", cfg.Log.Format)
	}

	return logger.Level(lvl).With().Timestamp().Logger(), nil
}
