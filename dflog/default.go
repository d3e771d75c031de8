package dflog

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"
)

// DefaultLogger writes level-gated, timestamped lines to an io.Writer.
type DefaultLogger struct {
	mu     sync.RWMutex
	level  LogLevel
	logger *log.Logger
	prefix string
}

func NewDefaultLogger(prefix string) *DefaultLogger {
	return &DefaultLogger{
		level:  LogLevelInfo,
		logger: log.New(os.Stdout, "", 0),
		prefix: prefix,
	}
}

func (l *DefaultLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *DefaultLogger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *DefaultLogger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetOutput(w)
}

func (l *DefaultLogger) log(level LogLevel, format string, args ...any) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.level < level {
		return
	}
	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	if l.prefix != "" {
		l.logger.Printf("%s [%s] %s: %s", ts, l.prefix, level, msg)
		return
	}
	l.logger.Printf("%s %s: %s", ts, level, msg)
}

func (l *DefaultLogger) Debug(format string, args ...any) { l.log(LogLevelDebug, format, args...) }
func (l *DefaultLogger) Info(format string, args ...any)  { l.log(LogLevelInfo, format, args...) }
func (l *DefaultLogger) Warn(format string, args ...any)  { l.log(LogLevelWarn, format, args...) }
func (l *DefaultLogger) Error(format string, args ...any) { l.log(LogLevelError, format, args...) }

// LogSQL renders SQL text at debug level only; truncates long statements
// so a bad query doesn't flood the log.
func (l *DefaultLogger) LogSQL(sql string, args []any, duration time.Duration) {
	if l.GetLevel() < LogLevelDebug {
		return
	}
	text := sql
	if len(text) > 500 {
		text = text[:500] + "..."
	}
	l.log(LogLevelDebug, "sql (%s): %s %v", duration, text, args)
}
