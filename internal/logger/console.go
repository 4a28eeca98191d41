// Package logger provides console logging for testflow execution.
//
// Output is line-oriented with [HH:MM:SS] timestamps, filtered by log
// level, and colorized when writing to a terminal. Implementations are
// safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/testflow/internal/models"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs session progress to a writer with timestamps and
// thread safety. It supports log level filtering to control verbosity.
// Color output is enabled automatically when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided
// io.Writer. If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// An empty or invalid level defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if color.NoColor {
		// Honors the NO_COLOR convention.
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// normalizeLogLevel lowercases a log level and validates it, defaulting
// to "info".
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// shouldLog reports whether a message at the given level passes the
// configured filter.
func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// Tracef logs a formatted trace-level message (most verbose).
func (cl *ConsoleLogger) Tracef(format string, args ...any) {
	cl.logWithLevel("TRACE", fmt.Sprintf(format, args...))
}

// Debugf logs a formatted debug-level message.
func (cl *ConsoleLogger) Debugf(format string, args ...any) {
	cl.logWithLevel("DEBUG", fmt.Sprintf(format, args...))
}

// Infof logs a formatted info-level message.
func (cl *ConsoleLogger) Infof(format string, args ...any) {
	cl.logWithLevel("INFO", fmt.Sprintf(format, args...))
}

// Warnf logs a formatted warning-level message.
func (cl *ConsoleLogger) Warnf(format string, args ...any) {
	cl.logWithLevel("WARN", fmt.Sprintf(format, args...))
}

// Errorf logs a formatted error-level message.
func (cl *ConsoleLogger) Errorf(format string, args ...any) {
	cl.logWithLevel("ERROR", fmt.Sprintf(format, args...))
}

// logWithLevel logs a message at the specified level if filtering allows it.
// Format: "[HH:MM:SS] [LEVEL] <message>"
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil {
		return
	}
	if !cl.shouldLog(strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	levelText := level
	if cl.colorOutput {
		levelText = colorForLevel(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, levelText, message)
}

func colorForLevel(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New()
	}
}

// LogPhaseStart logs the start of a phase at INFO level.
// Format: "[HH:MM:SS] Starting <name>: <count> suites"
func (cl *ConsoleLogger) LogPhaseStart(phase models.ExecutionPhase) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := phase.Name
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting %s: %d suites\n", timestamp(), name, len(phase.Suites))
}

// LogSuiteResult logs the outcome of one suite at DEBUG level.
// Format: "[HH:MM:SS] Suite <id>: <status> (<duration>)"
func (cl *ConsoleLogger) LogSuiteResult(result models.TestResult) {
	if cl.writer == nil || !cl.shouldLog("debug") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	status := string(result.Status)
	if cl.colorOutput {
		switch result.Status {
		case models.SuitePassed:
			status = color.New(color.FgGreen).Sprint(status)
		case models.SuiteFailed, models.SuiteError:
			status = color.New(color.FgRed).Sprint(status)
		case models.SuiteSkipped:
			status = color.New(color.FgYellow).Sprint(status)
		}
	}
	fmt.Fprintf(cl.writer, "[%s] Suite %s: %s (%s)\n", timestamp(), result.SuiteID, status, formatDuration(result.Duration))
}

// LogProgress logs live progress of a session at INFO level.
// Format: "[HH:MM:SS] Progress: 60% (3/5 suites, 1 failed, 0 skipped)"
func (cl *ConsoleLogger) LogProgress(progress models.SessionProgress) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	finished := progress.CompletedSuites + progress.FailedSuites + progress.SkippedSuites
	msg := fmt.Sprintf("Progress: %.0f%% (%d/%d suites, %d failed, %d skipped)",
		progress.OverallProgress, finished, progress.TotalSuites, progress.FailedSuites, progress.SkippedSuites)
	if cl.colorOutput {
		if progress.OverallProgress >= 100 {
			msg = color.New(color.FgGreen).Sprint(msg)
		} else {
			msg = color.New(color.FgCyan).Sprint(msg)
		}
	}
	fmt.Fprintf(cl.writer, "[%s] %s\n", timestamp(), msg)
}

// LogSessionSummary logs a terminal session's outcome statistics at INFO
// level.
func (cl *ConsoleLogger) LogSessionSummary(session models.TestSession) {
	if cl.writer == nil || !cl.shouldLog("info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	header := fmt.Sprintf("=== Session %s: %s ===", session.ID, session.Status)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, header)
	fmt.Fprintf(cl.writer, "[%s] Total suites: %d\n", ts, session.Progress.TotalSuites)

	passed := fmt.Sprintf("Passed: %d", session.Progress.CompletedSuites)
	if cl.colorOutput {
		passed = color.New(color.FgGreen).Sprint(passed)
	}
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, passed)

	failed := fmt.Sprintf("Failed: %d", session.Progress.FailedSuites)
	if cl.colorOutput && session.Progress.FailedSuites > 0 {
		failed = color.New(color.FgRed).Sprint(failed)
	}
	fmt.Fprintf(cl.writer, "[%s] %s\n", ts, failed)
	fmt.Fprintf(cl.writer, "[%s] Skipped: %d\n", ts, session.Progress.SkippedSuites)
	fmt.Fprintf(cl.writer, "[%s] Queue wait: %s\n", ts, formatDuration(session.Metrics.QueueWait))
	fmt.Fprintf(cl.writer, "[%s] Duration: %s\n", ts, formatDuration(session.Metrics.Execution))

	if session.Progress.FailedSuites > 0 {
		failedHeader := "Failed suites:"
		if cl.colorOutput {
			failedHeader = color.New(color.FgRed).Sprint(failedHeader)
		}
		fmt.Fprintf(cl.writer, "[%s] %s\n", ts, failedHeader)
		for _, result := range session.Results {
			if result.Failed() {
				fmt.Fprintf(cl.writer, "[%s]   - %s: %s\n", ts, result.SuiteID, result.Message)
			}
		}
	}
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// formatDuration converts a time.Duration to a compact human-readable
// string. Examples: "5s", "1m30s", "2h15m"
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder == 0 {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards all log messages. Useful for testing or when
// logging is disabled.
type NoOpLogger struct{}

// NewNoOpLogger creates a NoOpLogger instance.
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// Infof is a no-op implementation.
func (n *NoOpLogger) Infof(format string, args ...any) {
}

// Warnf is a no-op implementation.
func (n *NoOpLogger) Warnf(format string, args ...any) {
}
