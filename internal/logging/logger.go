// Package logging provides categorized file-based logging for solari.
// Logs are written to <dir>/logs/ with separate files per category.
// Logging is a silent no-op unless debug mode is enabled at Initialize time,
// so hot paths can call the category helpers unconditionally.
package logging

import (
	"encoding/json"
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
	CategoryBoot       Category = "boot"       // Startup and wiring
	CategoryRouter     Category = "router"     // Intent detection and ranking
	CategoryExtract    Category = "extract"    // Entity extraction
	CategoryFlow       Category = "flow"       // Flow compilation and execution
	CategoryPolicy     Category = "policy"     // Authorization decisions
	CategoryAudit      Category = "audit"      // Audit chain appends and verification
	CategoryTools      Category = "tools"      // Tool registry invocations
	CategoryClassifier Category = "classifier" // External classifier calls
	CategorySuggest    Category = "suggest"    // Suggestion engine runs
	CategoryConfig     Category = "config"     // Config loading and reloads
)

// Log levels.
const (
	LevelDebug = 0
	LevelInfo  = 1
	LevelWarn  = 2
	LevelError = 3
)

// Options controls logger initialization. Zero value means disabled.
type Options struct {
	Dir        string          // Base directory; logs land in Dir/logs
	DebugMode  bool            // Master switch; false disables all output
	Level      string          // debug/info/warn/error, default info
	JSONFormat bool            // Emit structured JSON lines instead of text
	Categories map[string]bool // Per-category enable; nil enables all
}

// StructuredLogEntry is one JSON log line.
type StructuredLogEntry struct {
	Timestamp int64          `json:"ts"`
	Category  string         `json:"cat"`
	Level     string         `json:"lvl"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
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
	logsDir   string
	opts      Options
	optsMu    sync.RWMutex
	logLevel  int
)

// Initialize sets up the logging directory from explicit options.
// Safe to call once at startup; when DebugMode is false this is a no-op.
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

	if !o.DebugMode {
		return nil
	}
	if o.Dir == "" {
		return fmt.Errorf("logging directory required in debug mode")
	}

	logsDir = filepath.Join(o.Dir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== solari logging initialized ===")
	boot.Info("Logs directory: %s", logsDir)
	boot.Info("Level: %s json=%v", o.Level, o.JSONFormat)
	return nil
}

// Close closes all open log files.
func Close() {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	for cat, l := range loggers {
		if l.file != nil {
			l.file.Close()
		}
		delete(loggers, cat)
	}
}

// IsDebugMode returns whether debug logging is enabled.
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled.
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) || logsDir == "" {
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

	// Date prefix keeps rotation a matter of deleting old files.
	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(logsDir, fmt.Sprintf("%s_%s.log", date, category))

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

func (l *Logger) logJSON(level, msg string, fields map[string]any) {
	entry := StructuredLogEntry{
		Timestamp: time.Now().UnixMilli(),
		Category:  string(l.category),
		Level:     level,
		Message:   msg,
		Fields:    fields,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Printf("[%s] %s", level, msg)
		return
	}
	l.logger.Printf("%s", data)
}

func (l *Logger) emit(level int, tag, format string, args ...any) {
	if l.logger == nil || logLevel > level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	optsMu.RLock()
	asJSON := opts.JSONFormat
	optsMu.RUnlock()
	if asJSON {
		l.logJSON(tag, msg, nil)
	} else {
		l.logger.Printf("[%s] %s", tag, msg)
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...any) { l.emit(LevelDebug, "DEBUG", format, args...) }

// Info logs an informational message.
func (l *Logger) Info(format string, args ...any) { l.emit(LevelInfo, "INFO", format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...any) { l.emit(LevelWarn, "WARN", format, args...) }

// Error logs an error message.
func (l *Logger) Error(format string, args ...any) { l.emit(LevelError, "ERROR", format, args...) }

// StructuredLog writes a structured entry with custom fields.
func (l *Logger) StructuredLog(level string, msg string, fields map[string]any) {
	if l.logger == nil {
		return
	}
	optsMu.RLock()
	asJSON := opts.JSONFormat
	optsMu.RUnlock()
	if asJSON {
		l.logJSON(level, msg, fields)
		return
	}
	l.logger.Printf("[%s] %s | fields=%v", level, msg, fields)
}

// =============================================================================
// CATEGORY CONVENIENCE HELPERS
// =============================================================================

// RouterDebug logs to the router category at debug level.
func RouterDebug(format string, args ...any) { Get(CategoryRouter).Debug(format, args...) }

// ExtractDebug logs to the extract category at debug level.
func ExtractDebug(format string, args ...any) { Get(CategoryExtract).Debug(format, args...) }

// FlowDebug logs to the flow category at debug level.
func FlowDebug(format string, args ...any) { Get(CategoryFlow).Debug(format, args...) }

// PolicyDebug logs to the policy category at debug level.
func PolicyDebug(format string, args ...any) { Get(CategoryPolicy).Debug(format, args...) }

// AuditDebug logs to the audit category at debug level.
func AuditDebug(format string, args ...any) { Get(CategoryAudit).Debug(format, args...) }

// ToolsDebug logs to the tools category at debug level.
func ToolsDebug(format string, args ...any) { Get(CategoryTools).Debug(format, args...) }

// ClassifierDebug logs to the classifier category at debug level.
func ClassifierDebug(format string, args ...any) { Get(CategoryClassifier).Debug(format, args...) }

// SuggestDebug logs to the suggest category at debug level.
func SuggestDebug(format string, args ...any) { Get(CategorySuggest).Debug(format, args...) }

// ConfigDebug logs to the config category at debug level.
func ConfigDebug(format string, args ...any) { Get(CategoryConfig).Debug(format, args...) }
