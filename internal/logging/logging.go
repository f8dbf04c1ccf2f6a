// internal/logging/logging.go - Structured logger construction
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/akkana/pytopo/internal"
)

// Options selects where log records go and how they look.
type Options struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	Output     string // stdout, stderr, file
	File       string // path when Output is "file"
	MaxSizeMB  int
	MaxBackups int
}

// New builds a slog.Logger from the options. File output rotates via
// lumberjack so a long-running viewer cannot fill the disk.
func New(opts Options) (*slog.Logger, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer
	switch opts.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "file":
		if opts.File == "" {
			return nil, internal.NewError(internal.ErrorCodeConfig,
				"log file path is required for file output", nil)
		}
		out = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
	default:
		return nil, internal.NewError(internal.ErrorCodeConfig,
			fmt.Sprintf("unknown log output %q", opts.Output), nil)
	}

	hopts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch opts.Format {
	case "json":
		handler = slog.NewJSONHandler(out, hopts)
	default:
		handler = slog.NewTextHandler(out, hopts)
	}
	return slog.New(handler), nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, internal.NewError(internal.ErrorCodeConfig,
		fmt.Sprintf("unknown log level %q", s), nil)
}
