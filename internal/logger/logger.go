package logger

import (
	"io"
	"log/slog"
	"os"
)

// New builds a JSON slog logger writing to w. Debug mode lowers the level to Debug.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// InitJSONLogger configures and sets the default slog logger to use JSON format on stdout.
func InitJSONLogger(debug bool) {
	slog.SetDefault(New(os.Stdout, debug))
}
