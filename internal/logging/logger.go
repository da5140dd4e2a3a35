// Package logging provides categorized file-based logging for GrudAI.
// Each category writes to its own dated file under <data>/logs/.
// Logging is a silent no-op until Initialize is called with Enabled set.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config, shutdown
	CategoryStore   Category = "store"   // SQLite repositories
	CategoryChat    Category = "chat"    // Context assembly, turn persistence
	CategoryRelay   Category = "relay"   // Upstream provider streaming
	CategoryAPI     Category = "api"     // HTTP request handling
	CategoryExtract Category = "extract" // File text extraction
)

// Log levels
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger behavior. Zero value disables all output.
type Options struct {
	Enabled bool
	Level   string // debug, info, warn, error
	Dir     string // directory for log files
}

// Logger wraps a standard logger with category and file output.
type Logger struct {
	category Category
	logger   *log.Logger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	optsMu    sync.RWMutex
	opts      Options
	logLevel  int
)

// Initialize sets up the logging directory. Should be called once at startup.
func Initialize(o Options) error {
	optsMu.Lock()
	opts = o
	switch o.Level {
	case "debug":
		logLevel = LevelDebug
	case "warn", "warning":
		logLevel = LevelWarn
	case "error":
		logLevel = LevelError
	default:
		logLevel = LevelInfo
	}
	optsMu.Unlock()

	if !o.Enabled {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("log directory required")
	}
	if err := os.MkdirAll(o.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== GrudAI logging initialized ===")
	boot.Info("Logs directory: %s", o.Dir)
	boot.Info("Log level: %s", o.Level)
	return nil
}

func enabled() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.Enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger when logging is disabled.
func Get(category Category) *Logger {
	if !enabled() {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	loggersMu.RUnlock()

	loggersMu.Lock()
	defer loggersMu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}

	// Date prefix keeps rotation trivial.
	date := time.Now().Format("2006-01-02")
	filename := fmt.Sprintf("%s_%s.log", date, category)
	optsMu.RLock()
	logPath := filepath.Join(opts.Dir, filename)
	optsMu.RUnlock()

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		logger:   log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
	loggers[category] = l
	return l
}

// Debug logs a debug message (only if level <= debug).
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelDebug {
		return
	}
	l.logger.Printf("[DEBUG] %s", fmt.Sprintf(format, args...))
}

// Info logs an informational message (only if level <= info).
func (l *Logger) Info(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelInfo {
		return
	}
	l.logger.Printf("[INFO] %s", fmt.Sprintf(format, args...))
}

// Warn logs a warning message (only if level <= warn).
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.logger == nil || logLevel > LevelWarn {
		return
	}
	l.logger.Printf("[WARN] %s", fmt.Sprintf(format, args...))
}

// Error logs an error message (always logged if logger exists).
func (l *Logger) Error(format string, args ...interface{}) {
	if l.logger == nil {
		return
	}
	l.logger.Printf("[ERROR] %s", fmt.Sprintf(format, args...))
}

// CloseAll closes all open log files (call at shutdown).
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for _, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootError logs error to the boot category
func BootError(format string, args ...interface{}) {
	Get(CategoryBoot).Error(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// Chat logs to the chat category
func Chat(format string, args ...interface{}) {
	Get(CategoryChat).Info(format, args...)
}

// ChatDebug logs debug to the chat category
func ChatDebug(format string, args ...interface{}) {
	Get(CategoryChat).Debug(format, args...)
}

// ChatError logs error to the chat category
func ChatError(format string, args ...interface{}) {
	Get(CategoryChat).Error(format, args...)
}

// Relay logs to the relay category
func Relay(format string, args ...interface{}) {
	Get(CategoryRelay).Info(format, args...)
}

// RelayDebug logs debug to the relay category
func RelayDebug(format string, args ...interface{}) {
	Get(CategoryRelay).Debug(format, args...)
}

// RelayWarn logs warning to the relay category
func RelayWarn(format string, args ...interface{}) {
	Get(CategoryRelay).Warn(format, args...)
}

// RelayError logs error to the relay category
func RelayError(format string, args ...interface{}) {
	Get(CategoryRelay).Error(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// APIError logs error to the api category
func APIError(format string, args ...interface{}) {
	Get(CategoryAPI).Error(format, args...)
}

// Extract logs to the extract category
func Extract(format string, args ...interface{}) {
	Get(CategoryExtract).Info(format, args...)
}

// ExtractDebug logs debug to the extract category
func ExtractDebug(format string, args ...interface{}) {
	Get(CategoryExtract).Debug(format, args...)
}

// =============================================================================
// TIMING HELPERS - For performance logging
// =============================================================================

// Timer helps measure operation duration
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}
