package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures a logger with console and optional rotating file output.
type Options struct {
	Level        string
	ConsoleStyle string // "pretty" | "json"
	File         string // empty disables file output
	Console      io.Writer
}

// NewWithOptions builds a root logger from Options. The returned closer
// releases the log file, if any; it is never nil.
func NewWithOptions(opts Options) (*Logger, io.Closer) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	if opts.ConsoleStyle != "json" {
		console = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}

	if opts.File == "" {
		return New(console, opts.Level), nopCloser{}
	}

	file := newRotatingFile(opts.File)
	return New(zerolog.MultiLevelWriter(console, file), opts.Level), file
}

// newRotatingFile returns a size-rotated, compressed log file writer.
func newRotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    15, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
