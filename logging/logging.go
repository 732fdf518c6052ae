// Package logging defines the ILogger contract used throughout the
// scheduler (spec §6) and a zerolog-backed implementation, grounded on
// therealutkarshpriyadarshi-log/internal/logging/logger.go.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors spec §6: Trace=0 < Debug < Info < Warning < Error <
// Critical < Off.
type Level int

const (
	Trace Level = iota
	Debug
	Info
	Warning
	Error
	Critical
	Off
)

func (l Level) String() string {
	switch l {
	case Trace:
		return "trace"
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "off"
	}
}

// SourceLocation is an optional caller annotation for a log event.
type SourceLocation struct {
	File string
	Line int
	Func string
}

// Logger is the ILogger contract: structured leveled logging with runtime
// level control.
type Logger interface {
	Log(level Level, message string, loc *SourceLocation)
	IsEnabled(level Level) bool
	SetLevel(level Level)
	Flush() error
}

// zerologLogger adapts zerolog.Logger to the Logger contract.
type zerologLogger struct {
	logger *zerolog.Logger
	level  Level
	writer io.Writer
}

// Config configures a zerolog-backed Logger.
type Config struct {
	Level  Level
	Output io.Writer
}

// New builds a Logger backed by zerolog, matching
// therealutkarshpriyadarshi-log's logger construction.
func New(cfg Config) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	zl := zerolog.New(out).With().Timestamp().Logger()
	zl = zl.Level(toZerolog(cfg.Level))
	return &zerologLogger{logger: &zl, level: cfg.Level, writer: out}
}

// Discard returns a Logger that drops every event; used as the default when
// the builder is never given one, and in tests.
func Discard() Logger {
	zl := zerolog.New(io.Discard)
	return &zerologLogger{logger: &zl, level: Off}
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case Trace:
		return zerolog.TraceLevel
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warning:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	case Critical:
		return zerolog.FatalLevel
	default:
		return zerolog.Disabled
	}
}

func (z *zerologLogger) Log(level Level, message string, loc *SourceLocation) {
	if !z.IsEnabled(level) {
		return
	}
	ev := z.logger.WithLevel(toZerolog(level))
	if loc != nil {
		ev = ev.Str("file", loc.File).Int("line", loc.Line).Str("func", loc.Func)
	}
	ev.Msg(message)
}

func (z *zerologLogger) IsEnabled(level Level) bool {
	return level >= z.level && z.level != Off
}

func (z *zerologLogger) SetLevel(level Level) {
	z.level = level
	*z.logger = z.logger.Level(toZerolog(level))
}

func (z *zerologLogger) Flush() error {
	if f, ok := z.writer.(interface{ Sync() error }); ok {
		return f.Sync()
	}
	return nil
}
