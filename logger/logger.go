package logger

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var log atomic.Pointer[slog.Logger]

func init() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") == "true" {
		level = slog.LevelDebug
	}

	log.Store(newLogger(os.Stderr, level))
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetDebug は設定読み込み後にログレベルを切り替える
func SetDebug(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	log.Store(newLogger(os.Stderr, level))
}

// SetOutput はテスト用に出力先を差し替える
func SetOutput(w io.Writer) {
	log.Store(newLogger(w, slog.LevelDebug))
}

func With(args ...any) *slog.Logger {
	return log.Load().With(args...)
}

func Debug(msg string, args ...any) {
	log.Load().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	log.Load().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	log.Load().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	log.Load().Error(msg, args...)
}

func Fatal(msg string, args ...any) {
	log.Load().Error(msg, args...)
	os.Exit(1)
}
