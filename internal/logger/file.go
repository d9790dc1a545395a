package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLogger writes timestamped per-run logs to .wiggum/logs/, maintains
// a latest.log symlink to the current run, and a per-task detail log
// under logs/tasks/. Thread-safe; supports the same level filtering as
// ConsoleLogger.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	tasksDir string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger writing to .wiggum/logs with the
// default "info" level.
func NewFileLogger() (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(filepath.Join(".wiggum", "logs"), "info")
}

// NewFileLoggerWithDir creates a FileLogger at a custom directory with
// the default "info" level.
func NewFileLoggerWithDir(logDir string) (*FileLogger, error) {
	return NewFileLoggerWithDirAndLevel(logDir, "info")
}

// NewFileLoggerWithDirAndLevel creates a FileLogger at a custom
// directory and level, opening a new run-<timestamp>.log file and
// repointing latest.log at it.
func NewFileLoggerWithDirAndLevel(logDir, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	tasksDir := filepath.Join(logDir, "tasks")
	if err := os.MkdirAll(tasksDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create tasks directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		tasksDir: tasksDir,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog(fmt.Sprintf("=== wiggum run log ===\nStarted at: %s\n\n", time.Now().Format(time.RFC3339)))
	return fl, nil
}

func (fl *FileLogger) shouldLog(messageLevel string) bool {
	return logLevelToInt(messageLevel) >= logLevelToInt(fl.logLevel)
}

func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }
func (fl *FileLogger) LogInfo(message string)  { fl.logWithLevel("INFO", message) }
func (fl *FileLogger) LogWarn(message string)  { fl.logWithLevel("WARN", message) }
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level, message string) {
	if !fl.shouldLog(strings.ToLower(level)) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", time.Now().Format("15:04:05"), level, message))
}

// LogTick mirrors ConsoleLogger.LogTick in the run log.
func (fl *FileLogger) LogTick(ready, blocked, inProgress int) {
	fl.LogInfo(fmt.Sprintf("tick: ready=%d blocked=%d in-progress=%d", ready, blocked, inProgress))
}

// LogSpawn mirrors ConsoleLogger.LogSpawn in the run log.
func (fl *FileLogger) LogSpawn(taskID, kind, dir string) {
	fl.LogInfo(fmt.Sprintf("spawned %s worker for %s (%s)", kind, taskID, dir))
}

// LogReap mirrors ConsoleLogger.LogReap and also writes a per-task
// detail file under logs/tasks/.
func (fl *FileLogger) LogReap(taskID, outcome string) {
	fl.LogInfo(fmt.Sprintf("reaped %s: %s", taskID, outcome))
	fl.writeTaskLog(taskID, outcome)
}

// LogRunSummary mirrors ConsoleLogger.LogRunSummary in the run log.
func (fl *FileLogger) LogRunSummary(done, failed, skipped int, duration time.Duration) {
	fl.LogInfo(fmt.Sprintf("run summary: done=%d failed=%d skipped=%d duration=%s", done, failed, skipped, duration.Round(time.Second)))
}

func (fl *FileLogger) writeTaskLog(taskID, outcome string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	path := filepath.Join(fl.tasksDir, fmt.Sprintf("%s.log", taskID))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] outcome=%s\n", time.Now().Format(time.RFC3339), outcome)
}

// Close flushes and closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return nil
	}
	if err := fl.runLog.Sync(); err != nil {
		return fmt.Errorf("failed to sync run log: %w", err)
	}
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.runLog == nil {
		return
	}
	fl.runLog.WriteString(message)
	fl.runLog.Sync()
}
