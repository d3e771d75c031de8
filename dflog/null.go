package dflog

import (
	"io"
	"time"
)

// NullLogger discards everything. It is the zero-configuration default.
type NullLogger struct {
	level LogLevel
}

func NewNullLogger() *NullLogger {
	return &NullLogger{level: LogLevelNone}
}

func (n *NullLogger) Debug(format string, args ...any) {}
func (n *NullLogger) Info(format string, args ...any)  {}
func (n *NullLogger) Warn(format string, args ...any)  {}
func (n *NullLogger) Error(format string, args ...any) {}

func (n *NullLogger) SetLevel(level LogLevel) { n.level = level }
func (n *NullLogger) GetLevel() LogLevel      { return n.level }
func (n *NullLogger) SetOutput(w io.Writer)   {}

func (n *NullLogger) LogSQL(sql string, args []any, duration time.Duration) {}
