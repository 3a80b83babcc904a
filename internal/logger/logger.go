// Package logger owns the process-wide hclog logger. Components take a
// hclog.Logger and call Named on it; package-level helpers cover code that
// has no logger of its own.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mattn/go-isatty"
)

// Options configures the root logger
type Options struct {
	Level  string
	Format string
	Output string
}

var (
	mu   sync.RWMutex
	root hclog.Logger = hclog.New(&hclog.LoggerOptions{
		Name:  "fragreel",
		Level: hclog.Info,
	})
)

// New builds a logger from options without installing it
func New(opts Options) (hclog.Logger, error) {
	out, err := openOutput(opts.Output)
	if err != nil {
		return nil, err
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	color := hclog.ColorOff
	if f, ok := out.(*os.File); ok && opts.Format != "json" && isatty.IsTerminal(f.Fd()) {
		color = hclog.AutoColor
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "fragreel",
		Level:      level,
		Output:     out,
		JSONFormat: strings.EqualFold(opts.Format, "json"),
		Color:      color,
	}), nil
}

// Init builds the root logger and installs it
func Init(opts Options) (hclog.Logger, error) {
	l, err := New(opts)
	if err != nil {
		return nil, err
	}
	SetDefault(l)
	return l, nil
}

// SetDefault replaces the root logger
func SetDefault(l hclog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	root = l
}

// Default returns the root logger
func Default() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// SetLevel changes the root logger level at runtime
func SetLevel(level string) {
	if l := hclog.LevelFromString(level); l != hclog.NoLevel {
		Default().SetLevel(l)
	}
}

func openOutput(output string) (io.Writer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	}
}

// Info logs informational messages
func Info(msg string, args ...interface{}) {
	Default().Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	Default().Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	Default().Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	Default().Debug(msg, args...)
}
