package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// F is a shorthand for creating a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Err is a shorthand for F("error", err)
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Config holds logger configuration
type Config struct {
	Level      Level     // Minimum log level
	FilePath   string    // Path to log file
	MaxSize    int64     // Max size in bytes before rotation (default: 10MB)
	MaxAge     int       // Max age in days (default: 7)
	MaxBackups int       // Max number of backup files (default: 5)
	Console    bool      // Enable console logging
	Writer     io.Writer // Extra output, used by tests and the server's stdout
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	logPath := filepath.Join(home, ".goalpost", "logs", "goalpost.log")

	return Config{
		Level:      INFO,
		FilePath:   logPath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxAge:     7,
		MaxBackups: 5,
		Console:    false, // Disabled by default to not interfere with TUI
	}
}

// core is shared between a logger and every child created by WithFields
type core struct {
	config  Config
	mu      sync.Mutex
	file    *os.File
	writers []io.Writer
}

// Logger is the main logger instance
type Logger struct {
	core   *core
	fields []Field
}

var (
	globalLogger *Logger
	once         sync.Once
	nop          = &Logger{core: &core{config: Config{Level: ERROR + 1}}}
)

// Init initializes the global logger
func Init(config Config) error {
	var err error
	once.Do(func() {
		globalLogger, err = New(config)
	})
	return err
}

// New creates a new logger instance
func New(config Config) (*Logger, error) {
	c := &core{config: config}

	// Create log directory if it doesn't exist
	if config.FilePath != "" {
		logDir := filepath.Dir(config.FilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		if err := c.openFile(); err != nil {
			return nil, err
		}

		// Check if rotation is needed
		if err := c.rotateIfNeeded(); err != nil {
			return nil, err
		}
	}

	c.resetWriters()
	return &Logger{core: c}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return nop
}

// Default returns the global logger, or a no-op logger before Init
func Default() *Logger {
	if globalLogger != nil {
		return globalLogger
	}
	return nop
}

func (c *core) openFile() error {
	file, err := os.OpenFile(c.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	c.file = file
	return nil
}

func (c *core) resetWriters() {
	c.writers = c.writers[:0]
	if c.file != nil {
		c.writers = append(c.writers, c.file)
	}
	if c.config.Console {
		c.writers = append(c.writers, os.Stderr)
	}
	if c.config.Writer != nil {
		c.writers = append(c.writers, c.config.Writer)
	}
}

// rotateIfNeeded checks if log rotation is needed and performs it. Caller holds c.mu
// (or owns c exclusively, during New).
func (c *core) rotateIfNeeded() error {
	if c.file == nil {
		return nil
	}

	info, err := c.file.Stat()
	if err != nil {
		return err
	}

	if c.config.MaxSize > 0 && info.Size() >= c.config.MaxSize {
		return c.rotate()
	}

	if c.config.MaxAge > 0 && time.Since(info.ModTime()) > time.Duration(c.config.MaxAge)*24*time.Hour {
		return c.rotate()
	}

	return nil
}

// rotate performs log rotation. Caller holds c.mu.
func (c *core) rotate() error {
	if c.file != nil {
		c.file.Close()
	}

	// Rotate existing backups
	for i := c.config.MaxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", c.config.FilePath, i)
		newPath := fmt.Sprintf("%s.%d", c.config.FilePath, i+1)
		os.Rename(oldPath, newPath)
	}

	// Move current log to .1
	if _, err := os.Stat(c.config.FilePath); err == nil {
		backupPath := fmt.Sprintf("%s.1", c.config.FilePath)
		if err := os.Rename(c.config.FilePath, backupPath); err != nil {
			return err
		}
	}

	if err := c.openFile(); err != nil {
		return err
	}
	c.resetWriters()
	return nil
}

// log writes a log entry
func (l *Logger) log(level Level, msg string, fields []Field) {
	c := l.core
	if level < c.config.Level {
		return
	}

	// Get caller info
	_, file, line, ok := runtime.Caller(2)
	caller := "???"
	if ok {
		caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}

	// Build log entry
	var b strings.Builder
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(&b, "[%s] %s %s: %s", timestamp, level.String(), caller, msg)

	if len(l.fields)+len(fields) > 0 {
		b.WriteString(" |")
		for _, f := range l.fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
		for _, f := range fields {
			fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
		}
	}
	b.WriteByte('\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check rotation before writing
	c.rotateIfNeeded()

	entry := []byte(b.String())
	for _, w := range c.writers {
		w.Write(entry)
	}
}

// WithFields creates a new logger with preset fields
func (l *Logger) WithFields(fields ...Field) *Logger {
	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &Logger{core: l.core, fields: merged}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DEBUG, msg, fields)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(INFO, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WARN, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ERROR, msg, fields)
}

// Close closes the logger and flushes any buffered data
func (l *Logger) Close() error {
	l.core.mu.Lock()
	defer l.core.mu.Unlock()

	if l.core.file != nil {
		err := l.core.file.Close()
		l.core.file = nil
		l.core.resetWriters()
		return err
	}
	return nil
}

// Global logger functions

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.log(DEBUG, msg, fields)
	}
}

// Info logs an info message using the global logger
func Info(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.log(INFO, msg, fields)
	}
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.log(WARN, msg, fields)
	}
}

// Error logs an error message using the global logger
func Error(msg string, fields ...Field) {
	if globalLogger != nil {
		globalLogger.log(ERROR, msg, fields)
	}
}

// WithFields creates a new logger with preset fields using the global logger
func WithFields(fields ...Field) *Logger {
	return Default().WithFields(fields...)
}

// Close closes the global logger
func Close() error {
	if globalLogger != nil {
		return globalLogger.Close()
	}
	return nil
}

// GetConfig returns the current logger configuration
func GetConfig() Config {
	if globalLogger != nil {
		return globalLogger.core.config
	}
	return DefaultConfig()
}
