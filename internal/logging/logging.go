// Package logging picks the slog handler for the binaries: colourised tint
// output on an interactive terminal, JSON everywhere else.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

// Handler returns the handler for out.
func Handler(debug bool, out io.Writer) slog.Handler {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if !isTerminal(out) {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}

	return tint.NewHandler(out, &tint.Options{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if _, ok := attr.Value.Any().(error); attr.Key == "err" || attr.Key == "error" || ok {
				return tint.Attr(9, attr)
			}
			return attr
		},
		TimeFormat: time.RFC3339,
	})
}

// New builds a logger tagged with the service name and installs it as the
// slog default.
func New(service string, debug bool, out io.Writer) *slog.Logger {
	logger := slog.New(Handler(debug, out)).With("service", service)
	slog.SetDefault(logger)
	return logger
}
