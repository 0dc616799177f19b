// Package logger configures the process-wide slog logger.
//
// Logs go to stderr so they never mix with command output on stdout
// (session lists and evaluated directories are piped into fzf).
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	levelVar = new(slog.LevelVar)
	mu       sync.Mutex
)

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (supported: debug, info, warn, error)", s)
	}
}

// Init installs a text handler writing to w (stderr when nil) as the
// default slog logger.
func Init(level string, w io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if w == nil {
		w = os.Stderr
	}

	mu.Lock()
	defer mu.Unlock()
	levelVar.Set(lvl)
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar})))
	return nil
}

// SetLevel changes the minimum level of the installed logger.
func SetLevel(lvl slog.Level) {
	levelVar.Set(lvl)
}
