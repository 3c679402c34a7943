package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunLog is a per-run file sink at <db dir>/runs/<run_id>/run.log. Lines are
// free-form; only the JSON envelope of the operation is part of any contract.
// The zero value is a no-op sink, so callers never need nil checks.
type RunLog struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// RunLogPath derives the log file path for a run from the database path.
func RunLogPath(dbPath, runID string) string {
	return filepath.Join(filepath.Dir(dbPath), "runs", runID, "run.log")
}

// NewRunLog creates (or appends to) the run log file for runID.
func NewRunLog(dbPath, runID string) (*RunLog, error) {
	path := RunLogPath(dbPath, runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	return &RunLog{file: f, path: path}, nil
}

// Path returns the log file path, empty for the no-op sink.
func (l *RunLog) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Infof writes an INFO line to the run log and the verbose stderr log.
func (l *RunLog) Infof(format string, args ...any) {
	Info(format, args...)
	l.write("INFO", format, args...)
}

// Warnf writes a WARN line to the run log and the verbose stderr log.
func (l *RunLog) Warnf(format string, args ...any) {
	Warn(format, args...)
	l.write("WARN", format, args...)
}

// Debugf writes a DEBUG line to the run log and the verbose stderr log.
func (l *RunLog) Debugf(format string, args ...any) {
	Debug(format, args...)
	l.write("DEBUG", format, args...)
}

// Close flushes and closes the file sink.
func (l *RunLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *RunLog) write(level, format string, args ...any) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := time.Now().UTC().Format("2006-01-02 15:04:05")
	fmt.Fprintf(l.file, "%s [%s] %s\n", ts, level, fmt.Sprintf(format, args...))
}
