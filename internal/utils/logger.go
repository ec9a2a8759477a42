package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process logger handed to every component.
type Logger struct {
	zerolog.Logger
}

func NewLogger(debug bool, out io.Writer) *Logger {
	if out == nil {
		out = os.Stdout
	}
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	zl := zerolog.New(out).Level(level).With().
		Timestamp().
		Str("service", "marquee").
		Logger()
	return &Logger{Logger: zl}
}

// NewNopLogger discards everything; used by tests.
func NewNopLogger() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.With().Str(FieldComponent, name).Logger()}
}

// WithStr returns a child logger carrying one extra string field.
func (l *Logger) WithStr(key, value string) *Logger {
	return &Logger{Logger: l.With().Str(key, value).Logger()}
}
