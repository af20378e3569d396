// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/illegalcall/weight-insights/internal/config"
)

// Init installs a JSON slog handler writing to stdout and, when cfg.File is
// set, to a size-rotated log file. The configured logger is also returned.
func Init(cfg config.LogConfig) *slog.Logger {
	writers := []io.Writer{os.Stdout}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			LocalTime:  true,
		})
	}

	log := New(io.MultiWriter(writers...), cfg.Level)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Level, "file", cfg.File)
	return log
}

// New builds a JSON logger on w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
