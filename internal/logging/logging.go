// Package logging centralizes zerolog setup for the client, server, and
// cmd binaries, with optional rotated-file output via lumberjack.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Config controls where and how verbosely a Logger writes.
type Config struct {
	// Level is parsed with zerolog.ParseLevel; an empty or invalid value
	// falls back to "info".
	Level string
	// FilePath, when non-empty, tees output through a rotating file sink
	// in addition to stderr.
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds a zerolog.Logger per Config.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	var writer io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}
	if cfg.FilePath != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		}
		writer = zerolog.MultiLevelWriter(writer, fileWriter)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func orDefault(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
