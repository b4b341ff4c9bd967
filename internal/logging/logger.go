// Package logging provides the zerolog-backed logger shared by every
// agentclick subsystem.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ValidLevels lists the accepted level names, quietest first.
var ValidLevels = []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}

var levels = map[string]zerolog.Level{
	"trace":  zerolog.TraceLevel,
	"debug":  zerolog.DebugLevel,
	"info":   zerolog.InfoLevel,
	"warn":   zerolog.WarnLevel,
	"error":  zerolog.ErrorLevel,
	"fatal":  zerolog.FatalLevel,
	"silent": zerolog.Disabled,
}

// Logger is a zerolog logger carrying the fields of its subsystem.
type Logger struct {
	zl zerolog.Logger
}

// New writes to w at level. A nil w means pretty console output on stderr.
func New(w io.Writer, level string) *Logger {
	if w == nil {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	zl := zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// Nop discards everything. Constructors use it when no logger is given.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Sub tags a child logger with a subsystem name.
func (l *Logger) Sub(subsystem string) *Logger {
	return l.With("subsystem", subsystem)
}

// With returns a child logger with one extra string field.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{zl: l.zl.With().Str(key, value).Logger()}
}

// Level reports the minimum level that is written.
func (l *Logger) Level() zerolog.Level { return l.zl.GetLevel() }

func (l *Logger) Trace() *zerolog.Event { return l.zl.Trace() }
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zl.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zl.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Fatal logs and exits the process.
func (l *Logger) Fatal() *zerolog.Event { return l.zl.Fatal() }

// IsValidLevel reports whether s names a level. Case is ignored and
// "warning" is accepted for "warn".
func IsValidLevel(s string) bool {
	_, ok := levels[normalize(s)]
	return ok
}

// parseLevel maps a level name to zerolog. Anything unknown is info.
func parseLevel(s string) zerolog.Level {
	if lv, ok := levels[normalize(s)]; ok {
		return lv
	}
	return zerolog.InfoLevel
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		return "warn"
	}
	return s
}
