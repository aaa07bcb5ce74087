package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------

// Sink receives every emitted line; the agent wires one to retain a bounded
// log tail on its state for the /api/logs endpoint.
type Sink func(level, message string)

// sinkRef is shared between a logger and all its Named children, so a sink
// attached after the children were created still receives their lines.
type sinkRef struct {
	mu sync.RWMutex
	fn Sink
}

// Logger provides structured logging functionality
type Logger struct {
	name   string
	logger *log.Logger
	level  int
	sink   *sinkRef
}

var levels = map[string]int{"DEBUG": 0, "INFO": 1, "WARNING": 2, "ERROR": 3, "CRITICAL": 4}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance. Messages below minLevel are
// suppressed; an empty minLevel means INFO.
func NewLogger(minLevel, name string) *Logger {
	lvl, ok := levels[strings.ToUpper(minLevel)]
	if !ok {
		lvl = levels["INFO"]
	}
	return &Logger{
		name:   name,
		logger: log.New(os.Stdout, "", log.LstdFlags),
		level:  lvl,
		sink:   &sinkRef{},
	}
}

// -----------------------------------------------------------------------------

// Named returns a child logger with the same level, sharing the parent's
// sink reference.
func (l *Logger) Named(name string) *Logger {
	return &Logger{name: name, logger: l.logger, level: l.level, sink: l.sink}
}

// -----------------------------------------------------------------------------

// SetSink attaches a sink for log retention. Children created before or
// after this call all emit through it.
func (l *Logger) SetSink(s Sink) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.fn = s
}

// -----------------------------------------------------------------------------

func (l *Logger) emit(level, format string, args ...interface{}) {
	if levels[level] < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] %s: %s", l.name, level, msg)

	l.sink.mu.RLock()
	sink := l.sink.fn
	l.sink.mu.RUnlock()
	if sink != nil {
		sink(level, fmt.Sprintf("[%s] %s", l.name, msg))
	}
}

// -----------------------------------------------------------------------------

// Debug logs debug messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.emit("DEBUG", format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.emit("INFO", format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs warning messages
func (l *Logger) Warning(format string, args ...interface{}) {
	l.emit("WARNING", format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.emit("ERROR", format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.emit("CRITICAL", format, args...)
	os.Exit(1)
}
