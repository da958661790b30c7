// Package logging is the leveled logging sink used across the reactor.
//
// The default logger is a zap sugared logger writing to stderr. Callers can
// swap it with SetDefaultLogger, e.g. to route reactor logs into their own
// logging stack.
package logging

import (
	"errors"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the logging severity.
type Level = zapcore.Level

const (
	// DebugLevel logs are typically voluminous, and are usually disabled in production.
	DebugLevel Level = zapcore.DebugLevel
	// InfoLevel is the default logging priority.
	InfoLevel Level = zapcore.InfoLevel
	// WarnLevel logs are more important than Info, but don't need individual human review.
	WarnLevel Level = zapcore.WarnLevel
	// ErrorLevel logs are high-priority.
	ErrorLevel Level = zapcore.ErrorLevel
	// FatalLevel logs a message, then calls os.Exit(1).
	FatalLevel Level = zapcore.FatalLevel
)

var ErrInvalidLevel = errors.New("invalid logging level")

// Logger is used for logging formatted messages.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

var (
	mu            sync.RWMutex
	defaultLevel  = zap.NewAtomicLevelAt(InfoLevel)
	defaultLogger Logger
	flusher       func() error
)

func init() {
	if lvl, ok := os.LookupEnv("NETREACTOR_LOGGING_LEVEL"); ok {
		if l, err := ParseLevel(lvl); err == nil {
			defaultLevel.SetLevel(l)
		}
	}
	zl := newZapLogger(zapcore.Lock(os.Stderr))
	defaultLogger = zl.Sugar()
	flusher = zl.Sync
}

func newZapLogger(ws zapcore.WriteSyncer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, defaultLevel)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// ParseLevel maps names like "debug" or "ERROR" to a Level.
func ParseLevel(s string) (Level, error) {
	var l Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return l, ErrInvalidLevel
	}
	return l, nil
}

// SetLevel changes the level of the built-in zap logger.
func SetLevel(l Level) {
	defaultLevel.SetLevel(l)
}

// GetLevel returns the level of the built-in zap logger.
func GetLevel() Level {
	return defaultLevel.Level()
}

// GetDefaultLogger returns the current default logger.
func GetDefaultLogger() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the default logger. flush may be nil.
func SetDefaultLogger(logger Logger, flush func() error) {
	if logger == nil {
		return
	}
	mu.Lock()
	defaultLogger = logger
	flusher = flush
	mu.Unlock()
}

// Flush flushes any buffered entries of the default logger.
func Flush() error {
	mu.RLock()
	f := flusher
	mu.RUnlock()
	if f == nil {
		return nil
	}
	return f()
}

func Debugf(format string, args ...interface{}) {
	GetDefaultLogger().Debugf(format, args...)
}

func Infof(format string, args ...interface{}) {
	GetDefaultLogger().Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	GetDefaultLogger().Warnf(format, args...)
}

func Errorf(format string, args ...interface{}) {
	GetDefaultLogger().Errorf(format, args...)
}

func Fatalf(format string, args ...interface{}) {
	GetDefaultLogger().Fatalf(format, args...)
}
