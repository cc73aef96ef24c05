package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Options controls logger construction.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // optional log file, appended to
	Stderr bool   // also write to stderr
}

var (
	mu      sync.Mutex
	logger  = slog.New(slog.NewTextHandler(io.Discard, nil))
	logFile *os.File
	isSetup bool
)

// SetupLogger installs the package logger. Calling it again while a logger is
// active is a no-op until CloseLogger is called.
func SetupLogger(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	var writers []io.Writer
	if opts.Stderr {
		writers = append(writers, os.Stderr)
	}
	if path := strings.TrimSpace(opts.File); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		writers = append(writers, f)
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	handler, err := newHandler(io.MultiWriter(writers...), opts)
	if err != nil {
		if logFile != nil {
			logFile.Close()
			logFile = nil
		}
		return err
	}

	logger = slog.New(handler)
	isSetup = true
	logger.Info("clothdna log started", "at", time.Now().UTC().Format(time.RFC3339))
	return nil
}

func newHandler(w io.Writer, opts Options) (slog.Handler, error) {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		return slog.NewTextHandler(w, handlerOpts), nil
	case "json":
		return slog.NewJSONHandler(w, handlerOpts), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CloseLogger flushes and closes the log file and resets to a discarding logger.
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if !isSetup {
		return
	}
	logger.Info("clothdna log closed", "at", time.Now().UTC().Format(time.RFC3339))
	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	isSetup = false
}

// Logger returns the current package logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogInfo logs at info level with slog key/value pairs.
func LogInfo(msg string, args ...any) {
	Logger().Info(msg, args...)
}

// DebugLog logs at debug level.
func DebugLog(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// LogWarning logs at warn level.
func LogWarning(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// LogError logs at error level.
func LogError(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// LogItemProcessed records the outcome of processing one item.
func LogItemProcessed(itemID, path string, err error) {
	if err != nil {
		Logger().Warn("item failed", "item_id", itemID, "path", path, "error", err)
		return
	}
	Logger().Info("item processed", "item_id", itemID, "path", path)
}
