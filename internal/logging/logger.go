// Package logging provides structured logging for the CLI.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const timeFormat = "15:04:05"

// Logger wraps zerolog with console formatting and an optional JSON file tee.
type Logger struct {
	zlog   zerolog.Logger
	output io.Writer // current console writer
	file   io.Writer // optional JSON sink
	fields map[string]string
}

// NewLogger creates a logger writing human-readable lines to out.
func NewLogger(out io.Writer) *Logger {
	l := &Logger{output: out, fields: map[string]string{}}
	l.rebuild()
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
// Logs go to stdout; stderr is reserved for progress bars.
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stdout)
}

// NewNop returns a logger that discards everything. Components fall back to it
// when constructed without a logger.
func NewNop() *Logger {
	return &Logger{zlog: zerolog.Nop(), output: io.Discard, fields: map[string]string{}}
}

// OrNop returns l, or a discarding logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNop()
	}
	return l
}

func (l *Logger) rebuild() {
	var w io.Writer = zerolog.ConsoleWriter{
		Out:        l.output,
		TimeFormat: timeFormat,
	}
	if l.file != nil {
		w = zerolog.MultiLevelWriter(w, l.file)
	}
	ctx := zerolog.New(w).With().Timestamp()
	for k, v := range l.fields {
		ctx = ctx.Str(k, v)
	}
	l.zlog = ctx.Logger()
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// WithField returns a child logger carrying key=value on every line.
func (l *Logger) WithField(key, value string) *Logger {
	child := &Logger{output: l.output, file: l.file, fields: make(map[string]string, len(l.fields)+1)}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	child.fields[key] = value
	if l.output == io.Discard && l.file == nil {
		child.zlog = zerolog.Nop()
		return child
	}
	child.rebuild()
	return child
}

// SetOutput changes the console writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.rebuild()
}

// TeeToFile additionally writes JSON lines to w.
func (l *Logger) TeeToFile(w io.Writer) {
	l.file = w
	l.rebuild()
}

// Output returns the current console writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: timeFormat,
	})
}
