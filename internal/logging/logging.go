package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// RotationPolicy selects how file loggers rotate their output.
type RotationPolicy string

const (
	RotationDaily  RotationPolicy = "daily"
	RotationWeekly RotationPolicy = "weekly"
	RotationSize   RotationPolicy = "size"
)

// FileConfig holds rotation settings for file-backed loggers.
type FileConfig struct {
	Rotation  RotationPolicy // rotation policy for log files
	MaxSizeMB int            // maximum log file size in MB before rotation
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	// Customize level names
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable loggers.
// It configures JSON output for structured logs and Text output for human-readable logs.
func Init() {
	SetLevel(slog.LevelInfo)
}

// SetLevel sets the minimum logging level for both structured and
// human-readable loggers by rebuilding their handlers.
func SetLevel(level slog.Level) {
	structuredHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// SetOutput redirects logger output, e.g. for tests. It replaces the entire
// handler configuration and keeps the default Info level.
func SetOutput(structuredOutput, humanReadableOutput io.Writer) {
	structuredHandler := slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)

	humanReadableHandler := slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: replaceLevelNames,
	})
	humanReadableLogger = slog.New(humanReadableHandler)

	slog.SetDefault(structuredLogger)
}

// Structured returns the globally configured structured (JSON) logger.
// Returns nil if Init() has not been called.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the globally configured human-readable (Text) logger.
// Returns nil if Init() has not been called.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService creates a new logger instance with the 'service' attribute added.
// It uses the global structured logger as the base, falling back to the
// process default logger before Init() so callers never receive nil.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return slog.Default().With("service", serviceName)
	}
	return structuredLogger.With("service", serviceName)
}

// --- Convenience functions using the default logger ---

// Debug logs a debug message using the default slog logger.
func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

// Info logs an info message using the default slog logger.
func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

// Warn logs a warning message using the default slog logger.
func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

// Error logs an error message using the default slog logger.
func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs a fatal message using the custom Fatal level and then exits.
// Uses the default logger.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs a trace message using the custom Trace level.
// Uses the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}

// EnableFileOutput routes structured logging to a rotating JSON log file in
// addition to stdout, using lumberjack for rotation. It returns a function to
// close the underlying log writer, and an error if setup fails.
func EnableFileOutput(filePath string, level slog.Level, fileConf FileConfig) (func() error, error) {
	// Ensure the directory exists (lumberjack doesn't create directories)
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename: filePath,
		Compress: false,
	}

	// Default values, overridden by config below
	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28 // days

	if fileConf.MaxSizeMB > 0 {
		maxSizeMB = fileConf.MaxSizeMB
	}

	switch fileConf.Rotation {
	case RotationDaily:
		maxAge = 1
		maxBackups = 30 // Keep up to 30 daily log files
	case RotationWeekly:
		maxAge = 7
		maxBackups = 4 // Keep up to 4 weekly log files
	case RotationSize:
		// Size-based rotation uses maxSizeMB with the default age/backups.
	default:
		slog.Warn("Unknown log rotation type in config, using size-based defaults", "configuredType", fileConf.Rotation)
	}

	logWriter.MaxSize = maxSizeMB
	logWriter.MaxBackups = maxBackups
	logWriter.MaxAge = maxAge

	structuredHandler := slog.NewJSONHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	})
	structuredLogger = slog.New(structuredHandler)
	slog.SetDefault(structuredLogger)

	return logWriter.Close, nil
}
