package hub

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Logger is the minimal leveled facade the hub logs through. The embedding
// host installs its own implementation via SetLogger; the default writes to
// stderr for warnings and errors and stdout for everything else.
type Logger interface {
	Error(message string, source ...string)
	Warn(message string, source ...string)
	Info(message string, source ...string)
	Debug(message string, source ...string)
	Trace(message string, source ...string)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...string) {}
func (noopLogger) Warn(string, ...string)  {}
func (noopLogger) Info(string, ...string)  {}
func (noopLogger) Debug(string, ...string) {}
func (noopLogger) Trace(string, ...string) {}

type stdLogger struct{}

func (stdLogger) write(level, message string, source []string) {
	line := fmt.Sprintf("%s %s %s", time.Now().Format(time.RFC3339), level, message)
	if len(source) > 0 && source[0] != "" {
		line = line + " [" + source[0] + "]"
	}
	out := os.Stdout
	if level == "ERROR" || level == "WARN" {
		out = os.Stderr
	}
	fmt.Fprintln(out, line)
}

// DefaultLogger returns the stderr/stdout logger used when no facade has
// been installed.
func DefaultLogger() Logger { return stdLogger{} }

func (l stdLogger) Error(message string, source ...string) { l.write("ERROR", message, source) }
func (l stdLogger) Warn(message string, source ...string)  { l.write("WARN", message, source) }
func (l stdLogger) Info(message string, source ...string)  { l.write("INFO", message, source) }
func (l stdLogger) Debug(message string, source ...string) { l.write("DEBUG", message, source) }
func (l stdLogger) Trace(message string, source ...string) { l.write("TRACE", message, source) }

// LogEntry represents a single captured log entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
}

// MemoryLogger keeps a bounded in-memory log, useful for diagnostics panels
// and tests.
type MemoryLogger struct {
	mu      sync.RWMutex
	entries []LogEntry
	maxSize int
}

// NewMemoryLogger creates a logger retaining at most maxSize entries.
func NewMemoryLogger(maxSize int) *MemoryLogger {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryLogger{entries: make([]LogEntry, 0, maxSize), maxSize: maxSize}
}

func (l *MemoryLogger) log(level, message string, source []string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := LogEntry{Timestamp: time.Now(), Level: level, Message: message}
	if len(source) > 0 {
		entry.Source = source[0]
	}
	l.entries = append(l.entries, entry)
	if len(l.entries) > l.maxSize {
		// Re-slice into a fresh buffer so capacity can't grow unbounded.
		start := len(l.entries) - l.maxSize
		trimmed := make([]LogEntry, l.maxSize)
		copy(trimmed, l.entries[start:])
		l.entries = trimmed
	}
}

// Error logs an error message.
func (l *MemoryLogger) Error(message string, source ...string) { l.log("ERROR", message, source) }

// Warn logs a warning message.
func (l *MemoryLogger) Warn(message string, source ...string) { l.log("WARN", message, source) }

// Info logs an informational message.
func (l *MemoryLogger) Info(message string, source ...string) { l.log("INFO", message, source) }

// Debug logs a debug message.
func (l *MemoryLogger) Debug(message string, source ...string) { l.log("DEBUG", message, source) }

// Trace logs a trace message.
func (l *MemoryLogger) Trace(message string, source ...string) { l.log("TRACE", message, source) }

// Entries returns a copy of all captured entries.
func (l *MemoryLogger) Entries() []LogEntry {
	if l == nil {
		return []LogEntry{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	entries := make([]LogEntry, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// Count returns the number of captured entries.
func (l *MemoryLogger) Count() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
