package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Log file names inside the log directory.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (debug/info/warning/error) to files and stdout/stderr.
type Logger struct {
	debugLog   *log.Logger
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	component  string
	debug      bool
	files      []*os.File
	mu         *sync.Mutex
}

// NewLogger creates a Logger writing to the log directory, creating it if needed.
func NewLogger(logDir string, debug bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir, debug: debug, mu: &sync.Mutex{}}

	writers := make(map[string]io.Writer, 3)
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, file)
		writers[name] = file
	}

	l.setupLoggers(
		io.MultiWriter(os.Stdout, writers[InfoFile]),
		io.MultiWriter(os.Stdout, writers[WarningFile]),
		io.MultiWriter(os.Stderr, writers[ErrorFile]),
	)
	return l, nil
}

// NewConsole creates a Logger that writes every level to w. Used by the
// command line tools and tests.
func NewConsole(w io.Writer) *Logger {
	l := &Logger{debug: true, mu: &sync.Mutex{}}
	l.setupLoggers(w, w, w)
	return l
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewConsole(io.Discard)
}

func (l *Logger) setupLoggers(info, warning, errors io.Writer) {
	flags := log.Ldate | log.Ltime | log.Lshortfile
	l.debugLog = log.New(info, "🔍 DEBUG   ", flags)
	l.infoLog = log.New(info, "ℹ️  INFO    ", flags)
	l.warningLog = log.New(warning, "⚠️  WARNING ", flags)
	l.errorLog = log.New(errors, "❌ ERROR   ", flags)
}

// With returns a Logger that prefixes every message with the component name.
// It shares outputs with the parent.
func (l *Logger) With(component string) *Logger {
	child := *l
	child.files = nil
	if l.component != "" {
		child.component = l.component + "/" + component
	} else {
		child.component = component
	}
	return &child
}

// Debug writes a formatted debug-level log entry when debug output is enabled.
func (l *Logger) Debug(format string, v ...interface{}) {
	if !l.debug {
		return
	}
	l.output(l.debugLog, format, v...)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.output(l.infoLog, format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.output(l.warningLog, format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.output(l.errorLog, format, v...)
}

func (l *Logger) output(target *log.Logger, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	if l.component != "" {
		msg = "[" + l.component + "] " + msg
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Skip output and the level method so Lshortfile names the caller.
	target.Output(3, msg)
}

// Dir returns the log directory, empty for console loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return nil
	}
	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	l.mu.Lock()
	err := os.Truncate(filepath.Join(l.logDir, fileName), 0)
	l.mu.Unlock()
	if err != nil {
		l.Error("Error truncating %s: %v", fileName, err)
		return err
	}

	l.Info("%s has been cleared.", fileName)
	return nil
}

// Close releases the log files.
func (l *Logger) Close() error {
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
