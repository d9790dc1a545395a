// Package logger provides the orchestrator's logging sinks: a colored
// console logger for human-facing tick/spawn/reap output, a file logger
// for per-run and per-task detail logs, and an activity logger for the
// newline-delimited JSON event stream consumed by tooling.
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
)

// Log level constants for filtering.
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs scheduler and lifecycle events to a writer with
// timestamps. Color is enabled only when the writer is a real TTY,
// checked with go-isatty rather than assuming os.Stdout/os.Stderr are
// terminals (true in CI, redirected output, etc).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger writing to the given writer.
// logLevel is one of trace/debug/info/warn/error (case-insensitive);
// empty or unrecognized values default to info.
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer) && !color.NoColor,
	}
}

// isTerminal reports whether w is a file descriptor attached to a TTY.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	default:
		return "info"
	}
}

func (cl *ConsoleLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(cl.logLevel)
}

func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

func (cl *ConsoleLogger) LogTrace(message string) { cl.logWithLevel("TRACE", message) }
func (cl *ConsoleLogger) LogDebug(message string) { cl.logWithLevel("DEBUG", message) }
func (cl *ConsoleLogger) LogInfo(message string)  { cl.logWithLevel("INFO", message) }
func (cl *ConsoleLogger) LogWarn(message string)  { cl.logWithLevel("WARN", message) }
func (cl *ConsoleLogger) LogError(message string) { cl.logWithLevel("ERROR", message) }

func (cl *ConsoleLogger) logWithLevel(level, message string) {
	if cl.writer == nil || !cl.shouldLog(strings.ToLower(level)) {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	ts := timestamp()
	if cl.colorOutput {
		cl.writer.Write([]byte(fmt.Sprintf("[%s] [%s] %s\n", ts, cl.colorLevel(level), message)))
		return
	}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] [%s] %s\n", ts, level, message)))
}

func (cl *ConsoleLogger) colorLevel(level string) string {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack).Sprint(level)
	case "DEBUG":
		return color.New(color.FgCyan).Sprint(level)
	case "INFO":
		return color.New(color.FgBlue).Sprint(level)
	case "WARN":
		return color.New(color.FgYellow).Sprint(level)
	case "ERROR":
		return color.New(color.FgRed).Sprint(level)
	default:
		return level
	}
}

// LogTick reports the scheduler tick's summary at INFO level: ready,
// blocked, and in-progress counts.
func (cl *ConsoleLogger) LogTick(ready, blocked, inProgress int) {
	cl.logWithLevel("INFO", fmt.Sprintf("tick: ready=%d blocked=%d in-progress=%d", ready, blocked, inProgress))
}

// LogSpawn reports a worker spawn at INFO level, colorizing the kind.
func (cl *ConsoleLogger) LogSpawn(taskID, kind, dir string) {
	if !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	ts := timestamp()
	kindLabel := kind
	if cl.colorOutput {
		kindLabel = color.New(color.Bold, color.FgCyan).Sprint(kind)
	}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] spawned %s worker for %s (%s)\n", ts, kindLabel, taskID, dir)))
}

// LogReap reports a worker reap outcome at INFO level, green for
// success and red for failure.
func (cl *ConsoleLogger) LogReap(taskID, outcome string) {
	if !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	ts := timestamp()
	label := outcome
	if cl.colorOutput {
		switch outcome {
		case "success":
			label = color.New(color.FgGreen).Sprint(outcome)
		case "failure":
			label = color.New(color.FgRed).Sprint(outcome)
		default:
			label = color.New(color.FgYellow).Sprint(outcome)
		}
	}
	cl.writer.Write([]byte(fmt.Sprintf("[%s] reaped %s: %s\n", ts, taskID, label)))
}

// LogRunSummary reports the final drained-run tally at INFO level.
func (cl *ConsoleLogger) LogRunSummary(done, failed, skipped int, duration time.Duration) {
	if !cl.shouldLog("info") {
		return
	}
	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	ts := timestamp()
	header := "=== run summary ==="
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
	}
	out := fmt.Sprintf("[%s] %s\n", ts, header)
	out += fmt.Sprintf("[%s] done: %d  failed: %d  skipped: %d  duration: %s\n", ts, done, failed, skipped, formatDuration(duration))
	cl.writer.Write([]byte(out))
}

func timestamp() string { return time.Now().Format("15:04:05") }

func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return fmt.Sprintf("%dh%dm", d/time.Hour, (d%time.Hour)/time.Minute)
	case d >= time.Minute:
		return fmt.Sprintf("%dm%ds", d/time.Minute, (d%time.Minute)/time.Second)
	default:
		return fmt.Sprintf("%ds", int64(d.Seconds()))
	}
}

// NoOpLogger discards everything; used by tests.
type NoOpLogger struct{}

func NewNoOpLogger() *NoOpLogger                                    { return &NoOpLogger{} }
func (n *NoOpLogger) LogTick(ready, blocked, inProgress int)        {}
func (n *NoOpLogger) LogSpawn(taskID, kind, dir string)             {}
func (n *NoOpLogger) LogReap(taskID, outcome string)                {}
func (n *NoOpLogger) LogRunSummary(done, failed, skipped int, d time.Duration) {}
