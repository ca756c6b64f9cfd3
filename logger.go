package main

import (
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// newLogger writes JSON in release mode and colored text otherwise.
func newLogger(level string) zerolog.Logger {
	var outputWriter io.Writer = os.Stderr
	if gin.Mode() != gin.ReleaseMode {
		outputWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	logLevel, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		logLevel = zerolog.InfoLevel
	}

	return zerolog.
		New(outputWriter).
		Level(logLevel).
		With().
		Timestamp().
		Logger()
}
