// Package logger is the process-wide slog facade. Components log through
// the printf-style helpers; main decides where the output goes.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"log/slog"
)

var (
	levelVar slog.LevelVar
	current  atomic.Pointer[slog.Logger]
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

func init() {
	levelVar.Set(slog.LevelInfo)
	current.Store(textLogger(os.Stdout))
}

func textLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar}))
}

// SetOutput replaces the log destination, typically with a stdout+file
// multiwriter set up by main.
func SetOutput(w io.Writer) {
	current.Store(textLogger(w))
}

// SetLevel accepts debug, info, warn/warning or error; anything else keeps
// the info default.
func SetLevel(level string) {
	if lvl, ok := levelNames[strings.ToLower(strings.TrimSpace(level))]; ok {
		levelVar.Set(lvl)
		return
	}
	levelVar.Set(slog.LevelInfo)
}

func Debugf(format string, v ...any) {
	current.Load().Debug(fmt.Sprintf(format, v...))
}

func Infof(format string, v ...any) {
	current.Load().Info(fmt.Sprintf(format, v...))
}

func Warnf(format string, v ...any) {
	current.Load().Warn(fmt.Sprintf(format, v...))
}

func Errorf(format string, v ...any) {
	current.Load().Error(fmt.Sprintf(format, v...))
}
