package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	// RotateMaxMegabytes bounds the size of file outputs before rotation.
	// Zero selects the default.
	RotateMaxMegabytes int
	// RotateMaxBackups bounds how many rotated files are kept. Zero selects
	// the default.
	RotateMaxBackups int
}

const (
	defaultRotateMaxMegabytes = 20
	defaultRotateMaxBackups   = 5
)

// New constructs a slog logger using the provided options. File output paths
// rotate via lumberjack; "stdout" and "stderr" are passed through unchanged.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	writer, err := openWriters(opts)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}

	handlerOpts := &slog.HandlerOptions{Level: levelVar, AddSource: level <= slog.LevelDebug}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOpts)
	case "console", "text":
		handler = slog.NewTextHandler(writer, handlerOpts)
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	return slog.New(handler), nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "info", "":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

func openWriters(opts Options) (io.Writer, error) {
	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	maxSize := opts.RotateMaxMegabytes
	if maxSize <= 0 {
		maxSize = defaultRotateMaxMegabytes
	}
	maxBackups := opts.RotateMaxBackups
	if maxBackups <= 0 {
		maxBackups = defaultRotateMaxBackups
	}

	writers := make([]io.Writer, 0, len(paths))
	for _, path := range paths {
		switch strings.TrimSpace(path) {
		case "":
			continue
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("ensure log directory: %w", err)
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    maxSize,
				MaxBackups: maxBackups,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		return io.Discard, nil
	}
	if len(writers) == 1 {
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}
