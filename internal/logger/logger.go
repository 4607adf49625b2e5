package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// level is shared by every logger built with New, so --log-level applies
	// to loggers created before flags were parsed.
	//nolint:gochecknoglobals // One level for the whole process.
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
	// global is returned by FromContext when the context carries no logger.
	//nolint:gochecknoglobals // Every package logs through it.
	global = New(os.Stderr)
)

// levelNames maps --log-level values to zap levels. The empty string means info.
//
//nolint:gochecknoglobals // Read-only lookup table.
var levelNames = map[string]zapcore.Level{
	"":        zapcore.InfoLevel,
	"debug":   zapcore.DebugLevel,
	"info":    zapcore.InfoLevel,
	"warn":    zapcore.WarnLevel,
	"warning": zapcore.WarnLevel,
	"error":   zapcore.ErrorLevel,
}

// New builds a console logger on w at the shared level. Command output goes
// to stdout, so the CLI passes stderr here.
func New(w io.Writer, options ...zap.Option) *zap.SugaredLogger {
	//nolint:exhaustruct // Unset keys are omitted from the line.
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		NameKey:          "logger",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalColorLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeName:       zapcore.FullNameEncoder,
		ConsoleSeparator: " ",
	})

	return zap.New(zapcore.NewCore(encoder, zapcore.AddSync(w), level), options...).Sugar()
}

// ParseLogLevel reads a --log-level value, ignoring case and surrounding blanks.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return zapcore.InfoLevel, false
	}

	return l, true
}

// SetLevel changes the level of every logger built with New.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// Logger is the process-wide fallback logger.
func Logger() *zap.SugaredLogger {
	return global
}

// DebugKV logs a debug line with key-value pairs through the context logger.
func DebugKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Debugw(message, kvs...)
}

// InfoKV logs an info line with key-value pairs through the context logger.
func InfoKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Infow(message, kvs...)
}

// WarnKV logs a warning with key-value pairs through the context logger.
func WarnKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Warnw(message, kvs...)
}

// ErrorKV logs an error with key-value pairs through the context logger.
func ErrorKV(ctx context.Context, message string, kvs ...any) {
	FromContext(ctx).Errorw(message, kvs...)
}
