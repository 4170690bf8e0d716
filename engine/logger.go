package engine

import (
	"fmt"
	"log"
	"sync"
)

// =============================================================================
// LOGGER - leveled component logger for recoverable failures
// =============================================================================
// Recoverable conditions (unknown operators, unmapped fields, malformed
// record values) log WARN and the run continues; only run.go returns errors.

type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var logLevelNames = map[LogLevel]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

// Logger is a minimal leveled logger. The zero value is not usable; call
// NewLogger. A nil *Logger is safe everywhere in the engine and logs at
// the default level.
type Logger struct {
	mu       sync.Mutex
	MinLevel LogLevel
}

func NewLogger(minLevel LogLevel) *Logger {
	return &Logger{MinLevel: minLevel}
}

var defaultLogger = NewLogger(LevelWarn)

func (l *Logger) orDefault() *Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

func (l *Logger) logf(level LogLevel, component, message string, args ...any) {
	l = l.orDefault()
	l.mu.Lock()
	min := l.MinLevel
	l.mu.Unlock()
	if level < min {
		return
	}
	log.Printf("[%s] [%s] %s", logLevelNames[level], component, fmt.Sprintf(message, args...))
}

func (l *Logger) Debugf(component, message string, args ...any) {
	l.logf(LevelDebug, component, message, args...)
}

func (l *Logger) Infof(component, message string, args ...any) {
	l.logf(LevelInfo, component, message, args...)
}

func (l *Logger) Warnf(component, message string, args ...any) {
	l.logf(LevelWarn, component, message, args...)
}

func (l *Logger) Errorf(component, message string, args ...any) {
	l.logf(LevelError, component, message, args...)
}
