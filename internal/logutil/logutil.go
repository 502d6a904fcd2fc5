// Package logutil wires the process-wide structured logger.
package logutil

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Init points slog's default logger at a size-rotated log file. With an
// empty path, logs go to stderr instead.
func Init(path string, maxSizeMB, maxBackups int, verbose bool) {
	var w io.Writer = os.Stderr

	if path != "" {
		w = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			Compress:   true,
		}
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})))
}
