package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// #region level

// LogLevel controls which messages a DefaultLogger emits.
type LogLevel int

const (
	LevelOff LogLevel = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelOff:
		return "OFF"
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// UnmarshalText lets LogLevel be parsed from environment variables and flags.
func (l *LogLevel) UnmarshalText(text []byte) error {
	switch strings.ToUpper(strings.TrimSpace(string(text))) {
	case "OFF":
		*l = LevelOff
	case "ERROR":
		*l = LevelError
	case "WARN", "WARNING":
		*l = LevelWarn
	case "INFO":
		*l = LevelInfo
	case "DEBUG":
		*l = LevelDebug
	default:
		return fmt.Errorf("invalid log level: %s", string(text))
	}
	return nil
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

// #endregion level

// #region logger

// Logger is the structured logger handed to every component.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DefaultLogger writes zap console-encoded lines with ISO8601 timestamps.
type DefaultLogger struct {
	logger *zap.SugaredLogger
	level  LogLevel
}

// NewLogger returns a logger writing to stderr.
func NewLogger(level LogLevel) *DefaultLogger {
	return NewLoggerTo(os.Stderr, level)
}

// NewLoggerTo returns a logger writing to w.
func NewLoggerTo(w io.Writer, level LogLevel) *DefaultLogger {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), zapLevel(level))
	return &DefaultLogger{logger: zap.New(core).Sugar(), level: level}
}

// Nop returns a logger that discards everything.
func Nop() *DefaultLogger {
	return &DefaultLogger{logger: zap.NewNop().Sugar(), level: LevelOff}
}

func (l *DefaultLogger) Debug(msg string, keysAndValues ...any) {
	if l.level >= LevelDebug {
		l.logger.Debugw(msg, keysAndValues...)
	}
}

func (l *DefaultLogger) Info(msg string, keysAndValues ...any) {
	if l.level >= LevelInfo {
		l.logger.Infow(msg, keysAndValues...)
	}
}

func (l *DefaultLogger) Warn(msg string, keysAndValues ...any) {
	if l.level >= LevelWarn {
		l.logger.Warnw(msg, keysAndValues...)
	}
}

func (l *DefaultLogger) Error(msg string, keysAndValues ...any) {
	if l.level >= LevelError {
		l.logger.Errorw(msg, keysAndValues...)
	}
}

// #endregion logger
