package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"

	"github.com/local/pdf2a5/internal/config"
	"github.com/local/pdf2a5/internal/faults"
)

// cliFlags holds everything parsed from the command line. Render settings
// are bound straight into the environment config so flags override it.
type cliFlags struct {
	dest       string
	trimExempt []int // 1-based, as typed
	check      bool
	runStatus  string // run ID to look up instead of converting
	version    bool
}

// parseFlags parses args (without the program name) on top of cfg.
func parseFlags(args []string, cfg *config.Config, usage io.Writer) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("pdf2a5", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &cliFlags{}
	r := &cfg.Render

	fs.StringVarP(&f.dest, "dest", "d", "", "destination directory or s3://bucket/prefix (default: source directory)")
	fs.IntVar(&r.DPI, "dpi", r.DPI, "rasterization resolution, at least 72")
	fs.IntVarP(&r.SheetsPerBlock, "batch", "b", r.SheetsPerBlock, "sheets per folded block")
	fs.Float64Var(&r.ShiftMM, "shift", r.ShiftMM, "binding shift in millimetres")
	fs.StringVar(&r.ShiftPolicy, "shift-policy", r.ShiftPolicy, "shift per block: constant or taper")
	fs.Float64Var(&r.FoldMarginMM, "fold-margin", r.FoldMarginMM, "blank margin each side of the fold in millimetres")
	fs.IntVarP(&r.Workers, "workers", "w", r.Workers, "parallel block renderers")
	fs.BoolVar(&r.Trim, "trim", r.Trim, "crop uniform white borders from source pages")
	fs.IntSliceVar(&f.trimExempt, "trim-exempt", nil, "page numbers (1-based) never trimmed, e.g. 1,2,40")
	fs.BoolVar(&r.Gray, "gray", r.Gray, "render in grayscale")
	fs.IntVarP(&r.JPEGQuality, "quality", "q", r.JPEGQuality, "JPEG quality of composed pages (1-100)")
	fs.BoolVar(&r.SwapHalves, "swap-halves", r.SwapHalves, "label the inner half \"a\" and the outer half \"b\"")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address during the run")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "debug, info, warn or error")
	fs.BoolVar(&f.check, "check", false, "check redis, s3 and the destination, then exit")
	fs.StringVar(&f.runStatus, "status", "", "print the recorded status of a run ID from redis, then exit")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(usage, "Usage: pdf2a5 [flags] <source.pdf | file:// | http(s):// | s3://bucket/key>\n")
		fmt.Fprintf(usage, "       pdf2a5 --status <run-id>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// zeroBasedPages converts 1-based page numbers into page indices.
func zeroBasedPages(pages []int) ([]int, error) {
	out := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 {
			return nil, faults.Configf("trim-exempt", "page numbers start at 1, got %d", p)
		}
		out = append(out, p-1)
	}
	return out, nil
}
