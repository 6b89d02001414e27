// Package logger provides structured logging for the Varinode SDK
package logger

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"
)

// LogLevel represents the logging level
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
	OFF   LogLevel = "OFF"
)

// Fields represents structured logging fields
type Fields map[string]interface{}

// Logger provides structured logging capabilities
type Logger struct {
	level   LogLevel
	service string
}

// logEntry represents a single log entry
type logEntry struct {
	Timestamp string
	Level     string
	Service   string
	Message   string
	Fields    map[string]interface{}
	File      string
	Line      int
}

// New creates a new structured logger. SDK loggers are silent by default;
// enabling debug in the configuration raises the level.
func New(service string) *Logger {
	return &Logger{
		level:   OFF,
		service: service,
	}
}

// SetLevel sets the minimum logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// GetLevel returns current logging level
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// shouldLog checks if message should be logged based on level
func (l *Logger) shouldLog(level LogLevel) bool {
	levels := map[LogLevel]int{
		DEBUG: 0,
		INFO:  1,
		WARN:  2,
		ERROR: 3,
		OFF:   4,
	}

	return levels[level] >= levels[l.level] && l.level != OFF
}

// getCallerInfo gets file and line info of the caller
func getCallerInfo(skip int) (string, int) {
	_, file, line, ok := runtime.Caller(skip + 2) // +2 to skip this function and the logging function
	if !ok {
		return "unknown", 0
	}

	// Show only filename, not full path
	parts := strings.Split(file, "/")
	if len(parts) > 0 {
		file = parts[len(parts)-1]
	}

	return file, line
}

// log performs the actual logging
func (l *Logger) log(level LogLevel, message string, fields Fields) {
	if !l.shouldLog(level) {
		return
	}

	file, line := getCallerInfo(2)

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Service:   l.service,
		Message:   message,
		Fields:    map[string]interface{}(fields),
		File:      file,
		Line:      line,
	}

	log.Print(formatLogEntry(entry))
}

// formatLogEntry formats the log entry for output
func formatLogEntry(entry logEntry) string {
	parts := []string{
		fmt.Sprintf("[%s]", entry.Timestamp),
		fmt.Sprintf("%-5s", entry.Level),
	}

	if entry.Service != "" {
		parts = append(parts, fmt.Sprintf("service=%s", entry.Service))
	}

	parts = append(parts, fmt.Sprintf("file=%s:%d", entry.File, entry.Line))
	parts = append(parts, entry.Message)

	if len(entry.Fields) > 0 {
		var fieldPairs []string
		for k, v := range entry.Fields {
			fieldPairs = append(fieldPairs, fmt.Sprintf("%s=%v", k, v))
		}
		parts = append(parts, fmt.Sprintf("fields=(%s)", strings.Join(fieldPairs, ", ")))
	}

	return strings.Join(parts, " ")
}

// Debug logs a debug message
func (l *Logger) Debug(message string, fields Fields) {
	l.log(DEBUG, message, fields)
}

// Info logs an info message
func (l *Logger) Info(message string, fields Fields) {
	l.log(INFO, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(message string, fields Fields) {
	l.log(WARN, message, fields)
}

// Error logs an error message
func (l *Logger) Error(message string, fields Fields) {
	l.log(ERROR, message, fields)
}

// Truncate shortens a payload representation for logging.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
