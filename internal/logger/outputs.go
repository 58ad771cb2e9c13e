package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// localOutputs returns the rotating log file, when configured, followed by
// the console.
func localOutputs(opts Options) ([]io.Writer, error) {
	var outs []io.Writer
	if opts.File != "" {
		f, err := rotatingFile(opts)
		if err != nil {
			return nil, err
		}
		outs = append(outs, f)
	}
	return append(outs, consoleOutput(opts)), nil
}

func rotatingFile(opts Options) (*lumberjack.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

// consoleOutput writes JSON lines, or a human layout with the run and block
// fields up front when Pretty is set.
func consoleOutput(opts Options) io.Writer {
	if !opts.Pretty {
		return opts.console()
	}
	return zerolog.ConsoleWriter{
		Out:         opts.console(),
		TimeFormat:  time.Kitchen,
		FieldsOrder: []string{FieldRunID, FieldBlock, FieldHalf, FieldPage},
	}
}
