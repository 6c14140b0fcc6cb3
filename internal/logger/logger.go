package logger

import (
	"sync"
)

// Log levels accepted in the logging section of the config.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	ConsoleFormat = "console"
	JSONFormat    = "json"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process-wide logger. Only the first call decides level and
// format; later calls return the instance built then.
func Get(level string, format ...string) *Logger {
	once.Do(func() {
		f := ConsoleFormat
		if len(format) > 0 {
			f = format[0]
		}
		globalLogger = New(level, f)
	})
	return globalLogger
}
