// Package logging provides the heap's structured logger: a package-level
// logger that discards everything until Init is called, so library code can
// log unconditionally without forcing output on callers who never opt in.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// L is the package logger. It discards all output until Init is called.
var L = slog.New(slog.NewTextHandler(io.Discard, nil))

// Options configures Init.
type Options struct {
	// Writer receives log output. Defaults to os.Stderr when nil.
	Writer io.Writer
	// Level is the minimum level logged. Defaults to slog.LevelInfo.
	Level slog.Level
	// JSON selects slog.NewJSONHandler instead of the text handler.
	JSON bool
}

// Init attaches a real handler to L. Call it once from main() before any
// heap operations; library code should never call it itself.
func Init(opts Options) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		L = slog.New(slog.NewJSONHandler(w, handlerOpts))
		return
	}
	L = slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Disable reverts L to discarding all output.
func Disable() {
	L = slog.New(slog.NewTextHandler(io.Discard, nil))
}
