// Package logger configures the process-wide zerolog logger and the field
// names conversion events are tagged with.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Service is attached to every event shipped to Axiom.
const Service = "pdf2a5"

// Field names shared by conversion events. The console, the log file and
// Axiom all see the same keys, so one query follows a run everywhere.
const (
	FieldRunID = "run_id"
	FieldBlock = "block"
	FieldHalf  = "half"
	FieldPage  = "page" // 1-based
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Console receives human output. Defaults to os.Stderr so that stdout
	// stays free for the list of written documents.
	Console io.Writer

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

func (o Options) console() io.Writer {
	if o.Console == nil {
		return os.Stderr
	}
	return o.Console
}

var (
	global = zerolog.Nop()
	remote *shipper
)

// Init builds the global logger and installs it as log.Logger. A failing
// Axiom setup is reported on the console and leaves local logging intact.
func Init(opts Options) error {
	outs, err := localOutputs(opts)
	if err != nil {
		return err
	}

	var sh *shipper
	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		if sh, err = newAxiomShipper(opts); err != nil {
			fmt.Fprintf(opts.console(), "axiom disabled: %v\n", err)
			sh = nil
		} else {
			outs = append(outs, sh)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(zerolog.MultiLevelWriter(outs...)).
		Level(parseLevel(opts.Level)).
		With().Timestamp().Logger()

	Close()
	global, remote = l, sh
	log.Logger = l
	return nil
}

// parseLevel falls back to info for empty or unknown names.
func parseLevel(name string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || name == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// Close flushes events still queued for Axiom.
func Close() {
	if remote == nil {
		return
	}
	if n := remote.Dropped(); n > 0 {
		global.Warn().Int64("dropped", n).Msg("axiom queue overflowed")
	}
	remote.Close()
	remote = nil
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// ForRun returns a child of log.Logger tagged with the run ID.
func ForRun(runID string) zerolog.Logger {
	return log.With().Str(FieldRunID, runID).Logger()
}

// ForHalf tags l with a block half identity such as 003_b / outer.
func ForHalf(l zerolog.Logger, blockID, half string) zerolog.Logger {
	return l.With().Str(FieldBlock, blockID).Str(FieldHalf, half).Logger()
}
