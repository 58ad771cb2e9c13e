package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/local/pdf2a5/internal/config"
	"github.com/local/pdf2a5/internal/faults"
	"github.com/local/pdf2a5/internal/imposition"
	"github.com/local/pdf2a5/internal/logger"
	"github.com/local/pdf2a5/internal/metrics"
	"github.com/local/pdf2a5/internal/orchestrator"
	"github.com/local/pdf2a5/internal/scratch"
	"github.com/local/pdf2a5/internal/source"
	"github.com/local/pdf2a5/internal/statuscheck"
	"github.com/local/pdf2a5/internal/storage"
	"github.com/local/pdf2a5/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	// Error ignored: maxprocs.Set only fails on an invalid GOMAXPROCS, and
	// the runtime default is kept then.
	_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one conversion and returns the process exit code. Written
// document locations go to stdout, everything else to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.FromEnv()
	flags, positional, err := parseFlags(args, &cfg, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return faults.ExitSuccess
	}
	if err != nil {
		return faults.ExitUsage
	}
	if flags.version {
		fmt.Fprintf(stdout, "pdf2a5 %s\n", Version)
		return faults.ExitSuccess
	}
	if flags.runStatus != "" {
		return showStatus(ctx, stdout, stderr, cfg.RedisURL, flags.runStatus)
	}
	if len(positional) != 1 {
		fmt.Fprintln(stderr, "pdf2a5: exactly one source document is required (see --help)")
		return faults.ExitUsage
	}

	if err := logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		Console:      stderr,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintln(stderr, err)
		return faults.ExitGeneral
	}
	defer logger.Close()

	opts, err := buildOptions(cfg, flags, positional[0])
	if err != nil {
		log.Error().Err(err).Msg("invalid arguments")
		usageHint(stderr, err)
		return faults.ExitCode(err)
	}
	if opts.SheetsPerBlock > config.MaxSheetsWarning {
		log.Warn().Int("batch", opts.SheetsPerBlock).Msg("blocks of more than 10 sheets are hard to fold and staple")
	}

	if n := scratch.Sweep(cfg.ScratchDir, cfg.ScratchTTL); n > 0 {
		log.Info().Int("removed", n).Msg("swept stale scratch areas")
	}

	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr)
		defer shutdown()
	}

	status := openStatus(cfg.RedisURL)
	defer status.Close()

	s3opts := storage.S3Options{
		Region:    cfg.Storage.Region,
		Endpoint:  cfg.Storage.Endpoint,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		PathStyle: cfg.Storage.PathStyle,
	}
	var s3cli *s3.Client
	if buckets := s3Buckets(opts.Source, opts.Destination); len(buckets) > 0 {
		if s3cli, err = storage.NewS3Client(ctx, s3opts); err != nil {
			log.Error().Err(err).Msg("s3 client")
			return faults.ExitSource
		}
	}

	if flags.check {
		return preflight(ctx, stdout, status, s3cli, opts)
	}

	fetcher := &source.Fetcher{HTTP: &http.Client{Timeout: 5 * time.Minute}}
	if s3cli != nil {
		fetcher.S3 = s3cli
	}

	conv := orchestrator.New(orchestrator.Dependencies{
		Fetcher: fetcher,
		Status:  status,
		Scratch: scratch.Factory{Root: cfg.ScratchDir},
		OpenSink: func(ctx context.Context, dest string) (storage.Sink, error) {
			return storage.ForDestination(ctx, dest, s3opts)
		},
	})

	res, err := conv.Convert(ctx, opts)
	if res != nil {
		for _, out := range res.Outputs {
			fmt.Fprintln(stdout, out)
		}
	}
	if err != nil {
		ev := log.Error().Err(err)
		if orchestrator.IsPartial(res, err) {
			ev = ev.Int("kept", len(res.Outputs))
		}
		ev.Msg("conversion failed")
		usageHint(stderr, err)
		return faults.ExitCode(err)
	}
	return faults.ExitSuccess
}

// buildOptions validates the merged configuration and turns it into
// conversion options.
func buildOptions(cfg config.Config, flags *cliFlags, src string) (orchestrator.Options, error) {
	if err := cfg.Validate(); err != nil {
		return orchestrator.Options{}, err
	}
	exempt, err := zeroBasedPages(flags.trimExempt)
	if err != nil {
		return orchestrator.Options{}, err
	}
	labels := imposition.DefaultHalfLabels
	if cfg.Render.SwapHalves {
		labels = labels.Swapped()
	}
	r := cfg.Render
	return orchestrator.Options{
		Source:         src,
		Destination:    flags.dest,
		DPI:            r.DPI,
		SheetsPerBlock: r.SheetsPerBlock,
		ShiftMM:        r.ShiftMM,
		ShiftPolicy:    orchestrator.ShiftPolicy(r.ShiftPolicy),
		FoldMarginMM:   r.FoldMarginMM,
		Workers:        r.Workers,
		Trim:           r.Trim,
		TrimExempt:     exempt,
		Labels:         labels,
		Gray:           r.Gray,
		JPEGQuality:    r.JPEGQuality,
	}, nil
}

// preflight prints the health of every service the run would use.
func preflight(ctx context.Context, stdout io.Writer, status store.StatusStore, s3cli *s3.Client, opts orchestrator.Options) int {
	copts := statuscheck.Options{Buckets: s3Buckets(opts.Source, opts.Destination)}
	if p, ok := status.(statuscheck.RedisPinger); ok {
		copts.Redis = p
	}
	if s3cli != nil {
		copts.S3 = s3cli
	}
	dest := opts.Destination
	if dest == "" && !source.IsRemote(opts.Source) {
		dest = filepath.Dir(opts.Source)
	}
	if !strings.HasPrefix(dest, "s3://") {
		copts.Destination = dest
	}

	sum := statuscheck.New(copts).Summary(ctx)
	fmt.Fprint(stdout, sum.String())
	if !sum.OK() {
		return faults.ExitGeneral
	}
	return faults.ExitSuccess
}

// usageHint points at --help when err rejects the command line itself.
func usageHint(stderr io.Writer, err error) {
	if faults.IsConfiguration(err) {
		fmt.Fprintf(stderr, "pdf2a5: %v (see --help)\n", err)
	}
}

// showStatus prints what Redis recorded for runID.
func showStatus(ctx context.Context, stdout, stderr io.Writer, redisURL, runID string) int {
	if redisURL == "" {
		fmt.Fprintln(stderr, "pdf2a5: --status needs REDIS_URL to be set")
		return faults.ExitUsage
	}
	rs, err := store.NewRedisStatus(redisURL)
	if err != nil {
		fmt.Fprintf(stderr, "pdf2a5: %v\n", err)
		return faults.ExitGeneral
	}
	defer rs.Close()
	return printRunStatus(ctx, stdout, stderr, rs, runID)
}

func printRunStatus(ctx context.Context, stdout, stderr io.Writer, r store.StatusReader, runID string) int {
	st, ok, err := r.Get(ctx, runID)
	if err != nil {
		fmt.Fprintf(stderr, "pdf2a5: read status of %s: %v\n", runID, err)
		return faults.ExitGeneral
	}
	if !ok {
		fmt.Fprintf(stderr, "pdf2a5: no status recorded for run %s\n", runID)
		return faults.ExitGeneral
	}

	fmt.Fprintf(stdout, "run %s: %s %d%%\n", runID, st.Status, st.Progress)
	if st.Message != "" {
		fmt.Fprintf(stdout, "  %s\n", st.Message)
	}
	if st.Start != nil {
		fmt.Fprintf(stdout, "  started  %s\n", st.Start.Format(time.RFC3339))
	}
	if st.End != nil {
		fmt.Fprintf(stdout, "  finished %s\n", st.End.Format(time.RFC3339))
		if st.Start != nil {
			fmt.Fprintf(stdout, "  took     %s\n", st.End.Sub(*st.Start).Round(time.Millisecond))
		}
	}
	return faults.ExitSuccess
}

// s3Buckets lists the distinct buckets named by s3:// references.
func s3Buckets(refs ...string) []string {
	var out []string
	seen := map[string]bool{}
	for _, ref := range refs {
		bucket, _, err := storage.ParseS3URL(ref)
		if err != nil || seen[bucket] {
			continue
		}
		seen[bucket] = true
		out = append(out, bucket)
	}
	return out
}

func openStatus(redisURL string) store.StatusStore {
	if redisURL == "" {
		return store.NopStatus{}
	}
	rs, err := store.NewRedisStatus(redisURL)
	if err != nil {
		log.Warn().Err(err).Msg("run status disabled")
		return store.NopStatus{}
	}
	return rs
}

func serveMetrics(addr string) func() {
	metrics.Init()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
