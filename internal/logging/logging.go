// Package logging builds the zerolog logger shared by all workers and
// mirrors notable events into the system_logs table.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level   string // debug, info, warn, error
	Pretty  bool
	Service string
}

// New creates the structured logger for one worker. The service name is
// stamped on every event so the shared system_logs table stays readable.
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var output io.Writer = os.Stdout
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", cfg.Service).
		Logger()
}

// LogSink is the slice of the store the hook needs.
type LogSink interface {
	AppendLog(service, level, message string) error
}

// StoreHook mirrors Info and above into system_logs. Write failures must
// never cascade into the worker, so they are counted and dropped.
type StoreHook struct {
	Sink    LogSink
	Service string
	OnError func(error)
}

// Run implements zerolog.Hook.
func (h StoreHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	if level < zerolog.InfoLevel || message == "" {
		return
	}
	if err := h.Sink.AppendLog(h.Service, level.String(), message); err != nil && h.OnError != nil {
		h.OnError(err)
	}
}
