package main

import (
	"os"
	"time"

	"github.com/jrsteele09/go-passwordless/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogging writes JSON logs, or coloured console output in DEV.
func setupLogging(cfg config.EnvConfig) {
	level, err := zerolog.ParseLevel(cfg.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	zerolog.DefaultContextLogger = &log.Logger

	if err != nil {
		log.Warn().Str("level", cfg.GetLogLevel()).Msg("unknown log level, using info")
	}
}
