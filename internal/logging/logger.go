package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// maxLogSizeMB is the log file size that triggers rotation.
	maxLogSizeMB = 5
	// maxLogBackups is the number of rotated log files to keep.
	maxLogBackups = 3
	// maxLogAgeDays drops rotated files older than this.
	maxLogAgeDays = 28
)

// InitLogger initializes a structured logger with platform-specific log file paths.
// The logger writes JSON-formatted logs to a rotating file:
//   - macOS:   ~/Library/Logs/nrpc/nrpc.log
//   - Linux:   ~/.local/state/nrpc/nrpc.log
//   - Windows: %LOCALAPPDATA%\nrpc\Logs\nrpc.log
//
// When debug is true, the logger uses DEBUG level and includes source locations.
// Otherwise, it uses INFO level without source information.
func InitLogger(appName string, debug bool) (*slog.Logger, io.Closer, error) {
	logPath, err := getLogFilePath(appName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get log file path: %w", err)
	}
	return NewFileLogger(logPath, debug)
}

// NewFileLogger returns a JSON logger writing to path, rotated by size.
func NewFileLogger(path string, debug bool) (*slog.Logger, io.Closer, error) {
	logDir := filepath.Dir(path)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	out := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level:     level(debug),
		AddSource: debug,
	})
	return slog.New(handler), out, nil
}

// NewCLILogger returns a text logger for command output, usually on stderr.
// Without debug only warnings and errors are shown.
func NewCLILogger(w io.Writer, debug bool) *slog.Logger {
	lvl := slog.LevelWarn
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// Tee returns a logger that sends every record to each of loggers.
func Tee(loggers ...*slog.Logger) *slog.Logger {
	handlers := make([]slog.Handler, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			handlers = append(handlers, l.Handler())
		}
	}
	return slog.New(teeHandler(handlers))
}

func level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// getLogFilePath returns the platform-specific log file path.
func getLogFilePath(appName string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var logPath string
	switch runtime.GOOS {
	case "darwin":
		logPath = filepath.Join(homeDir, "Library", "Logs", appName, appName+".log")
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		logPath = filepath.Join(localAppData, appName, "Logs", appName+".log")
	default:
		logPath = filepath.Join(homeDir, ".local", "state", appName, appName+".log")
	}

	return logPath, nil
}

// NewNopLogger returns a no-op logger for testing.
func NewNopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError + 1,
	}))
}
